package app

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var listOrgsCmd = &cobra.Command{
	Use:   "listorgs",
	Short: "List the Meraki organizations the API key can access",
	Long: `List the organization ids and names the configured API key has access
to, for picking which organization to scan.`,
	RunE: runListOrgs,
}

func runListOrgs(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	orgs, err := client.GetOrganizations(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Org ID", "Name")
	for _, org := range orgs {
		if err := table.Append(org.ID, org.Name); err != nil {
			return err
		}
	}
	return table.Render()
}

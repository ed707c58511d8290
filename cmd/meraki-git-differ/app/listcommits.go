package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/gitrepo"
)

var listCommitsCmd = &cobra.Command{
	Use:   "listcommits <orgid>",
	Short: "List the commits in an organization's settings repository",
	Long: `List the commit hashes and messages of the organization's settings
repository, for deciding which commits to diff.`,
	Args: cobra.ExactArgs(1),
	RunE: runListCommits,
}

func runListCommits(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	orgID := args[0]

	orgName := orgID
	if client, err := newClient(cfg); err == nil {
		if org, err := client.GetOrganization(cmd.Context(), orgID); err == nil {
			orgName = org.Name
		}
	}

	repo, err := gitrepo.Open(cfg.SettingsDir(orgID))
	if err != nil {
		return err
	}
	commits, err := repo.Log(0)
	if err != nil {
		return err
	}

	fmt.Printf("Git commits for Meraki org id %s - %s:\n", orgID, orgName)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Commit Hash", "Date", "Message")
	for _, c := range commits {
		err := table.Append(c.Hash, c.When.Format("2006-01-02 15:04:05"), strings.TrimSpace(c.Message))
		if err != nil {
			return err
		}
	}
	return table.Render()
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/meraki"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/scaninfo"
)

var estimateScanCmd = &cobra.Command{
	Use:   "estimatescan <orgid>",
	Short: "Estimate how long scanning an organization will take",
	Long: `Estimate the number of API calls and the runtime of a full settings scan
for the organization, from its network and device inventory.`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimateScan,
}

func init() {
	estimateScanCmd.Flags().String("tag", "", "Only count networks carrying this dashboard tag")
}

func runEstimateScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	tag, err := cmd.Flags().GetString("tag")
	if err != nil {
		return err
	}

	orgID := args[0]
	inv, err := fetchInventory(cmd.Context(), client, orgID, tag)
	if err != nil {
		return err
	}
	est := scaninfo.EstimateScan(inv)

	fmt.Printf("Org %s has %d total devices and %d total networks\n",
		orgID, est.TotalDevices, len(inv.Networks)+len(inv.Templates))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Family", "Devices", "Networks")
	for _, family := range []string{
		entity.ProductWireless,
		entity.ProductSwitch,
		entity.ProductAppliance,
		entity.ProductCellularGateway,
		entity.ProductCamera,
	} {
		err := table.Append(family,
			fmt.Sprintf("%d", est.DevicesByFamily[family]),
			fmt.Sprintf("%d", est.NetworksByFamily[family]))
		if err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	hours, minutes := est.Hours()
	if est.Minutes > 60 {
		fmt.Printf("Approximately %d API calls will be made, taking about %d minutes or %dh %dm.\n",
			est.TotalCalls, est.Minutes, hours, minutes)
	} else {
		fmt.Printf("Approximately %d API calls will be made, taking about %d minutes.\n",
			est.TotalCalls, est.Minutes)
	}
	return nil
}

// fetchInventory pulls the entity lists the estimate and the scan both plan
// from, applying the optional tag filter.
func fetchInventory(ctx context.Context, client meraki.Client, orgID, tag string) (*entity.Inventory, error) {
	inv := &entity.Inventory{}

	data, err := client.GetPaginated(ctx, "/organizations/"+orgID+"/networks", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	if err := json.Unmarshal(data, &inv.Networks); err != nil {
		return nil, fmt.Errorf("failed to parse network list: %w", err)
	}

	data, err = client.Get(ctx, "/organizations/"+orgID+"/configTemplates", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list config templates: %w", err)
	}
	if err := json.Unmarshal(data, &inv.Templates); err != nil {
		return nil, fmt.Errorf("failed to parse template list: %w", err)
	}

	data, err = client.GetPaginated(ctx, "/organizations/"+orgID+"/devices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if err := json.Unmarshal(data, &inv.Devices); err != nil {
		return nil, fmt.Errorf("failed to parse device list: %w", err)
	}

	inv.FilterByTag(tag)
	return inv, nil
}

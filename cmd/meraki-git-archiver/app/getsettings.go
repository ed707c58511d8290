package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/archive"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/catalog"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/config"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/executor"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/gitrepo"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/meraki"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/planner"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/report"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/scaninfo"
)

// verboseTimeLayout renders the scan finish time for commit messages.
const verboseTimeLayout = "Monday, January 02, 2006 at 15:04:05 MST"

// scanHistoryDepth is how many commits the org summary page lists.
const scanHistoryDepth = 11

var getSettingsCmd = &cobra.Command{
	Use:   "getsettings <orgid>",
	Short: "Scan an organization's settings and commit them into git",
	Long: `Scan the organization's settings through the Dashboard API and commit
the result into the organization's git repository. Each endpoint response
becomes one JSON file; networks and devices get one directory each.

The per-organization rule table (scaninfo/API_GET_operations.csv) decides
which endpoints are scanned; edit it to tune future scans.`,
	Args: cobra.ExactArgs(1),
	RunE: runGetSettings,
}

func init() {
	getSettingsCmd.Flags().String("tag", "", "Only scan networks carrying this dashboard tag")
}

func runGetSettings(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	orgID := args[0]

	org, err := client.GetOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to resolve organization %s: %w", orgID, err)
	}
	slog.Info("Starting settings scan", "org", orgID, "name", org.Name)

	settingsDir := cfg.SettingsDir(orgID)
	scaninfoDir := cfg.ScanInfoDir(orgID)
	for _, dir := range []string{settingsDir, scaninfoDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	records, err := scaninfo.ListRecords(scaninfoDir)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		slog.Info("Previous scan on record", "finished", records[0].ScanEnd)
	}

	repo, err := gitrepo.Ensure(settingsDir, cfg.GitUserName, cfg.GitUserEmail)
	if err != nil {
		return err
	}

	// Export the current OpenAPI GET operations for operator reference;
	// the scan itself runs off the rule table.
	ops, err := client.GetOperations(ctx, orgID)
	if err != nil {
		slog.Warn("Failed to fetch OpenAPI specification, skipping operation export", "error", err)
	} else {
		exportPath := filepath.Join(scaninfoDir, "latest-openapi_GET_operations.csv")
		if err := catalog.WriteOperationsCSV(exportPath, ops); err != nil {
			slog.Warn("Failed to export OpenAPI operations", "error", err)
		}
	}

	cat, err := catalog.Load(filepath.Join(scaninfoDir, catalog.RulesFileName))
	if err != nil {
		return err
	}

	writer, err := archive.NewWriter(settingsDir, cfg.BackupFormat, cfg.DefaultConfigsDir)
	if err != nil {
		return err
	}
	if err := writer.Reset(); err != nil {
		return err
	}

	exec := executor.New(client, writer, cfg.MaxConcurrentRequests)
	plan := planner.New(cat, orgID)

	if err := exec.Run(ctx, plan.PlanOrg()); err != nil {
		return err
	}
	inv := exec.Inventory()
	inv.FilterByTag(tag)
	networks := inv.CombinedNetworks()
	slog.Info("Inventory captured",
		"networks", len(inv.Networks), "templates", len(inv.Templates), "devices", len(inv.Devices))

	if err := runScanPhases(ctx, exec, plan, settingsDir, networks, inv); err != nil {
		return err
	}

	now := time.Now()
	message := "Commit from Meraki scan finished on " + now.Format(verboseTimeLayout)
	hash, committed, err := repo.CommitAll(message)
	if err != nil {
		return err
	}
	if committed {
		slog.Info("Committed settings scan", "commit", hash)
	} else {
		slog.Info("No settings changed since last scan")
	}

	recordPath, err := scaninfo.WriteRecord(scaninfoDir, orgID, now)
	if err != nil {
		return err
	}
	slog.Info("Wrote scan record", "file", recordPath)

	metrics, err := scaninfo.CollectMetrics(settingsDir)
	if err != nil {
		return err
	}
	printMetrics(exec, metrics)

	if err := updateOrgWebPage(cfg, orgID, org.Name, repo, metrics); err != nil {
		slog.Warn("Failed to update org web page", "error", err)
	}

	if ops != nil {
		reportUnusedOperations(cat, ops, exec.Completed(), scaninfoDir)
	}
	return nil
}

// runScanPhases executes the remaining scan phases in dependency order. The
// later phases decide what to fetch by reading files the earlier phases
// archived, so each one is planned only after the previous exec.Run returns.
func runScanPhases(ctx context.Context, exec *executor.Executor, plan *planner.Planner, settingsDir string, networks []entity.Network, inv *entity.Inventory) error {
	phases := []func() []planner.Call{
		func() []planner.Call { return plan.PlanDevices(inv.Devices) },
		func() []planner.Call { return plan.PlanNetworks(networks) },
		func() []planner.Call { return plan.PlanApplianceLANs(settingsDir, networks) },
		func() []planner.Call { return plan.PlanSwitchProfiles(inv.Templates) },
		func() []planner.Call { return plan.PlanSwitchProfilePorts(settingsDir, inv.Templates) },
		func() []planner.Call { return plan.PlanSSIDs(settingsDir, networks) },
		func() []planner.Call { return plan.PlanBLE(settingsDir, networks, inv.Devices) },
	}
	for _, phase := range phases {
		if err := exec.Run(ctx, phase()); err != nil {
			return err
		}
	}
	return nil
}

func printMetrics(exec *executor.Executor, m scaninfo.Metrics) {
	fmt.Printf("Org settings: %d\n", m.OrgSettings)
	fmt.Printf("Device count: %d\n", m.Devices)
	fmt.Printf("Device settings count: %d\n", m.DeviceSettings)
	fmt.Printf("Networks count: %d\n", m.Networks)
	fmt.Printf("Networks settings count: %d\n", m.NetworkSettings)
	fmt.Printf("Total settings: %d\n", m.Total())
	fmt.Printf("API calls made: %d, responses archived: %d\n", exec.CallCount(), exec.ArchivedCount())
}

func updateOrgWebPage(cfg *config.Config, orgID, orgName string, repo gitrepo.Repo, m scaninfo.Metrics) error {
	commits, err := repo.Log(scanHistoryDepth)
	if err != nil {
		return err
	}
	gen := &report.Generator{
		WebDir:   cfg.WebPublishingDir,
		WebURL:   cfg.WebURL,
		OrgID:    orgID,
		Renderer: report.NewDiff2HTMLRenderer(cfg.Diff2HTMLBin),
	}
	return gen.UpdateScanHistory(orgName, commits, m)
}

func reportUnusedOperations(cat *catalog.Catalog, ops []meraki.Operation, completed map[string]bool, scaninfoDir string) {
	unused := cat.UnusedOperations(ops, completed)
	if len(unused) == 0 {
		return
	}
	fmt.Printf("\n%d API endpoints found in the latest OpenAPI spec were not called during this scan.\n", len(unused))
	fmt.Printf("Check %s and consider updating; put new entries as 'skipped' to ignore in future scans:\n",
		filepath.Join(scaninfoDir, catalog.RulesFileName))
	for _, op := range unused {
		fmt.Printf("  %s\n", op)
	}
}

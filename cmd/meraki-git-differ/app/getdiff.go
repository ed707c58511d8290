package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/gitrepo"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/report"
)

var getDiffCmd = &cobra.Command{
	Use:   "getdiff <orgid> [first] [second]",
	Short: "Generate a web diff report between two commits",
	Long: `Compare two commits of the organization's settings repository and
publish an HTML diff report for every changed settings file. Commits may be
given as hashes or references like HEAD~2; the previous and latest scans
(HEAD~1 and HEAD) are compared by default.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runGetDiff,
}

func runGetDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	orgID := args[0]
	first, second := "HEAD~1", "HEAD"
	if len(args) > 1 {
		first = args[1]
	}
	if len(args) > 2 {
		second = args[2]
	}

	repo, err := gitrepo.Open(cfg.SettingsDir(orgID))
	if err != nil {
		return err
	}

	gen := &report.Generator{
		WebDir:   cfg.WebPublishingDir,
		WebURL:   cfg.WebURL,
		OrgID:    orgID,
		Renderer: report.NewDiff2HTMLRenderer(cfg.Diff2HTMLBin),
	}

	slog.Info("Generating diff report", "org", orgID, "first", first, "second", second)
	run, err := gen.Generate(cmd.Context(), repo, first, second, time.Now())
	if err != nil {
		return err
	}

	if len(run.Items) == 0 {
		fmt.Printf("No settings changed between %s and %s.\n", first, second)
	} else {
		fmt.Printf("Report for %d changed settings written to %s\n", len(run.Items), run.IndexPath)
		for _, item := range run.Items {
			fmt.Printf("  %-9s %s\n", item.Status, item.Path)
		}
	}
	return nil
}

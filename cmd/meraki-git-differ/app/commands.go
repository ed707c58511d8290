// Package app provides the command tree for the Meraki settings diff
// reporter.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/config"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/meraki"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "meraki-git-differ",
	DisableAutoGenTag: true,
	Short:             "Create web diff reports from an archived Meraki settings repo",
	Long: `meraki-git-differ compares two commits of a per-organization settings
repository produced by meraki-git-archiver and publishes a side-by-side
HTML diff report for every changed settings file.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command for the differ.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to configuration file (YAML format)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	rootCmd.AddCommand(listOrgsCmd)
	rootCmd.AddCommand(listCommitsCmd)
	rootCmd.AddCommand(getDiffCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to read config flag: %w", err)
	}
	return config.NewLoader().Load(path)
}

func newClient(cfg *config.Config) (meraki.Client, error) {
	apiKey, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}
	return meraki.NewClient(cfg.BaseURL, apiKey, meraki.Options{MaxRetries: cfg.MaxRetries}), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
				return
			}
			fmt.Println(string(output))
		} else {
			slog.Info("meraki-git-differ version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

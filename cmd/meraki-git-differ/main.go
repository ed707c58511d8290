// Package main is the entry point for the Meraki settings diff reporter.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/cmd/meraki-git-differ/app"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/config"
)

func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	switch strings.ToLower(v.GetString("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid MERAKI_LOG_LEVEL, using INFO")
		return slog.LevelInfo
	}
}

func main() {
	// Log to stderr to keep stdout clean for table and JSON output.
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()})
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// Package config provides configuration loading for the archiver and differ
// commands. Settings live in a YAML file; the dashboard API key is read from
// the environment by preference because keeping it on disk is insecure.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "MERAKI"

	// APIKeyEnvVar holds the dashboard API key. Matches the variable the
	// official dashboard tooling reads, so one export serves both.
	APIKeyEnvVar = "MERAKI_DASHBOARD_API_KEY"
)

// Backup format values for Config.BackupFormat.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatBoth = "both"
)

// Config is the root configuration for both binaries.
type Config struct {
	// APIKey is the dashboard API key. Leave empty and export
	// MERAKI_DASHBOARD_API_KEY instead; the env var always wins.
	APIKey string `yaml:"apiKey,omitempty"`

	// BaseURL is the dashboard API base URL.
	BaseURL string `yaml:"baseUrl"`

	// GitBasePath is the directory holding one subdirectory per
	// organization, each with settings/ (the git repo) and scaninfo/.
	GitBasePath string `yaml:"gitBasePath"`

	// GitUserName and GitUserEmail identify the commit author.
	GitUserName  string `yaml:"gitUserName"`
	GitUserEmail string `yaml:"gitUserEmail"`

	// WebPublishingDir is the web server document directory the diff
	// reports are written under. WebURL is the URL prefix the pages are
	// served from, used when pages link to each other.
	WebPublishingDir string `yaml:"webPublishingDir"`
	WebURL           string `yaml:"webUrl"`

	// BackupFormat selects the serialization of archived settings:
	// json, yaml or both.
	BackupFormat string `yaml:"backupFormat"`

	// MaxConcurrentRequests caps in-flight API calls per phase.
	MaxConcurrentRequests int `yaml:"maxConcurrentRequests"`

	// MaxRetries bounds retry attempts for a failing API call.
	MaxRetries int `yaml:"maxRetries"`

	// DefaultConfigsDir holds JSON documents of known default (unset)
	// configurations; responses matching one are not archived.
	DefaultConfigsDir string `yaml:"defaultConfigsDir,omitempty"`

	// Diff2HTMLBin is the diff2html-cli binary the report generator runs.
	Diff2HTMLBin string `yaml:"diff2htmlBin"`
}

func defaultConfig() *Config {
	return &Config{
		BaseURL:               "https://api.meraki.com/api/v1",
		GitBasePath:           "/opt/MerakiGit/orgid",
		GitUserName:           "Meraki Settings Archiver",
		GitUserEmail:          "meraki-archiver@example.com",
		WebPublishingDir:      "/var/www/html/DevNetDashboards/MerakiGit",
		WebURL:                "/DevNetDashboards/MerakiGit",
		BackupFormat:          FormatJSON,
		MaxConcurrentRequests: 3,
		MaxRetries:            4,
		Diff2HTMLBin:          "diff2html",
	}
}

// Loader loads configuration from a file path.
type Loader interface {
	Load(path string) (*Config, error)
}

type fileLoader struct{}

// NewLoader creates the default file-backed Loader.
func NewLoader() Loader {
	return &fileLoader{}
}

// Load reads and validates the YAML configuration at path. A missing file is
// bootstrapped with defaults first, so a first run produces an editable
// config rather than an error.
func (*fileLoader) Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, fmt.Errorf("failed to bootstrap default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks the loaded configuration for values the run cannot
// proceed without.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("baseUrl cannot be empty")
	}
	if c.GitBasePath == "" {
		return fmt.Errorf("gitBasePath cannot be empty")
	}
	switch c.BackupFormat {
	case FormatJSON, FormatYAML, FormatBoth:
	default:
		return fmt.Errorf("backupFormat must be one of %s, %s or %s, got %q",
			FormatJSON, FormatYAML, FormatBoth, c.BackupFormat)
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("maxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries cannot be negative, got %d", c.MaxRetries)
	}
	return nil
}

// ResolveAPIKey returns the dashboard API key, preferring the environment
// variable over the config file value.
func (c *Config) ResolveAPIKey() (string, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if key := v.GetString("DASHBOARD_API_KEY"); key != "" {
		return key, nil
	}
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	return "", fmt.Errorf("no API key: export %s or set apiKey in the config file", APIKeyEnvVar)
}

// OrgDir returns the per-organization base directory.
func (c *Config) OrgDir(orgID string) string {
	return filepath.Join(c.GitBasePath, orgID)
}

// SettingsDir returns the per-organization settings directory, which is the
// working tree of the git repository.
func (c *Config) SettingsDir(orgID string) string {
	return filepath.Join(c.OrgDir(orgID), "settings")
}

// ScanInfoDir returns the per-organization scan metadata directory.
func (c *Config) ScanInfoDir(orgID string) string {
	return filepath.Join(c.OrgDir(orgID), "scaninfo")
}

// OrgWebDir returns the per-organization web publishing directory.
func (c *Config) OrgWebDir(orgID string) string {
	return filepath.Join(c.WebPublishingDir, "orgs", orgID)
}

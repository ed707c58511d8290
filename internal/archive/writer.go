// Package archive persists API responses into the per-organization settings
// tree that git versioning operates on. It owns the skip rules deciding
// which responses are not worth archiving: empty payloads, responses
// matching a known default configuration, and device radio settings that
// merely restate the absence of an RF profile.
package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/config"
)

// RepoInitFile is the placeholder committed when a settings repo is first
// created, so the initial commit is never empty. It survives tree resets.
const RepoInitFile = "repo_init"

// Writer persists responses under a settings root.
type Writer struct {
	// Root is the settings directory, the working tree of the org repo.
	Root string

	// Format selects json, yaml or both output files per response.
	Format string

	// fingerprints of known default configurations, loaded once.
	fingerprints map[string]bool
}

// NewWriter creates a Writer for the settings root. defaultsDir may be
// empty; when set, every JSON document in it is fingerprinted and matching
// responses are skipped.
func NewWriter(root, format, defaultsDir string) (*Writer, error) {
	w := &Writer{Root: root, Format: format, fingerprints: map[string]bool{}}
	if defaultsDir == "" {
		return w, nil
	}

	entries, err := os.ReadDir(defaultsDir)
	if os.IsNotExist(err) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read default configs directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(defaultsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read default config %s: %w", entry.Name(), err)
		}
		fp, err := fingerprint(data)
		if err != nil {
			slog.Warn("Skipping unparseable default config", "file", entry.Name(), "error", err)
			continue
		}
		w.fingerprints[fp] = true
	}
	return w, nil
}

// Write persists one response as dir/name.json (and/or .yaml) under the
// root. It returns false when a skip rule applied and nothing was written.
func (w *Writer) Write(dir, name string, payload []byte) (bool, error) {
	if emptyPayload(payload) {
		slog.Debug("Skipping empty response", "file", name)
		return false, nil
	}

	fp, err := fingerprint(payload)
	if err != nil {
		return false, fmt.Errorf("response for %s is not valid JSON: %w", name, err)
	}
	if w.fingerprints[fp] {
		slog.Debug("Skipping default configuration", "file", name)
		return false, nil
	}

	if name == "device_WirelessRadioSettings" && unsetRadioSettings(payload) {
		slog.Debug("Skipping unset radio settings", "file", name)
		return false, nil
	}

	target := filepath.Join(w.Root, dir)
	if err := os.MkdirAll(target, 0750); err != nil {
		return false, fmt.Errorf("failed to create settings directory: %w", err)
	}

	if w.Format == config.FormatJSON || w.Format == config.FormatBoth {
		pretty, err := indentJSON(payload)
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(filepath.Join(target, name+".json"), pretty, 0640); err != nil {
			return false, fmt.Errorf("failed to write %s.json: %w", name, err)
		}
	}
	if w.Format == config.FormatYAML || w.Format == config.FormatBoth {
		asYAML, err := jsonToYAML(payload)
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(filepath.Join(target, name+".yaml"), asYAML, 0640); err != nil {
			return false, fmt.Errorf("failed to write %s.yaml: %w", name, err)
		}
	}
	return true, nil
}

// Reset clears the settings tree ahead of a fresh scan so settings that no
// longer exist upstream show up as deletions in the commit. The repo
// metadata and the init placeholder stay.
func (w *Writer) Reset() error {
	entries, err := os.ReadDir(w.Root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings tree: %w", err)
	}
	for _, entry := range entries {
		if entry.Name() == ".git" || entry.Name() == RepoInitFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.Root, entry.Name())); err != nil {
			return fmt.Errorf("failed to reset settings tree: %w", err)
		}
	}
	return nil
}

// Stats walks the settings tree and counts archived directories and files,
// reported as the scan's archive metrics.
func (w *Writer) Stats() (dirs, files int, err error) {
	err = filepath.WalkDir(w.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if path != w.Root {
				dirs++
			}
			return nil
		}
		if d.Name() != RepoInitFile {
			files++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	return dirs, files, err
}

// emptyPayload reports whether a response carries no settings worth
// archiving: null, empty string, empty object or empty array.
func emptyPayload(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	switch string(trimmed) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}

// unsetRadioSettings matches the two-field response a device without an RF
// profile returns, which is noise rather than configuration.
func unsetRadioSettings(payload []byte) bool {
	result := gjson.ParseBytes(payload)
	if !result.IsObject() || len(result.Map()) != 2 {
		return false
	}
	return result.Get("serial").Exists() && result.Get("rfProfileId").Type == gjson.Null
}

// fingerprint hashes the canonical (compacted, key-sorted) form of a JSON
// document, so formatting differences never defeat default detection.
func fingerprint(payload []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", err
	}
	// Marshal sorts map keys, which canonicalizes objects.
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(canonical)), nil
}

func indentJSON(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "    "); err != nil {
		return nil, fmt.Errorf("failed to format JSON: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func jsonToYAML(payload []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON for YAML output: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render YAML: %w", err)
	}
	return out, nil
}

package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/config"
)

func newTestWriter(t *testing.T, format, defaultsDir string) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), format, defaultsDir)
	require.NoError(t, err)
	return w
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatJSON, "")
	written, err := w.Write("networks/N_1 - HQ", "network_Settings", []byte(`{"localStatusPageEnabled":true}`))
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(filepath.Join(w.Root, "networks/N_1 - HQ", "network_Settings.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"localStatusPageEnabled\": true\n}\n", string(data))
}

func TestWriteIdempotent(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatJSON, "")
	payload := []byte(`{"b":2,"a":1}`)

	_, err := w.Write("", "org_Organization", payload)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(w.Root, "org_Organization.json"))
	require.NoError(t, err)

	_, err = w.Write("", "org_Organization", payload)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(w.Root, "org_Organization.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second, "same payload must produce byte-identical output")
}

func TestWriteBothFormats(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatBoth, "")
	written, err := w.Write("", "org_Organization", []byte(`{"id":"123456","name":"Acme"}`))
	require.NoError(t, err)
	assert.True(t, written)

	assert.FileExists(t, filepath.Join(w.Root, "org_Organization.json"))
	yamlData, err := os.ReadFile(filepath.Join(w.Root, "org_Organization.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "id: \"123456\"")
	assert.Contains(t, string(yamlData), "name: Acme")
}

func TestWriteSkipsEmptyPayloads(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatJSON, "")
	for _, payload := range []string{"", "null", "{}", "[]", `""`, "  null  "} {
		written, err := w.Write("", "network_Settings", []byte(payload))
		require.NoError(t, err)
		assert.False(t, written, "payload %q should be skipped", payload)
	}
	assert.NoFileExists(t, filepath.Join(w.Root, "network_Settings.json"))
}

func TestWriteSkipsDefaultConfigs(t *testing.T) {
	t.Parallel()

	defaultsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(defaultsDir, "trafficShaping.json"),
		[]byte("{\n    \"defaultRulesEnabled\": true,\n    \"rules\": []\n}\n"), 0600))

	w := newTestWriter(t, config.FormatJSON, defaultsDir)

	// Same document, different formatting and key order.
	written, err := w.Write("", "network_ApplianceTrafficShapingRules",
		[]byte(`{"rules":[],"defaultRulesEnabled":true}`))
	require.NoError(t, err)
	assert.False(t, written)

	written, err = w.Write("", "network_ApplianceTrafficShapingRules",
		[]byte(`{"rules":[{"definitions":[]}],"defaultRulesEnabled":true}`))
	require.NoError(t, err)
	assert.True(t, written)
}

func TestWriteSkipsUnsetRadioSettings(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatJSON, "")

	written, err := w.Write("", "device_WirelessRadioSettings",
		[]byte(`{"serial":"Q2AP-0001-0001","rfProfileId":null}`))
	require.NoError(t, err)
	assert.False(t, written)

	// A set profile id is configuration and gets archived.
	written, err = w.Write("", "device_WirelessRadioSettings",
		[]byte(`{"serial":"Q2AP-0001-0001","rfProfileId":1234}`))
	require.NoError(t, err)
	assert.True(t, written)

	// Other file names keep two-field null documents.
	written, err = w.Write("", "network_Settings",
		[]byte(`{"serial":"Q2AP-0001-0001","rfProfileId":null}`))
	require.NoError(t, err)
	assert.True(t, written)
}

func TestWriteRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatJSON, "")
	_, err := w.Write("", "network_Settings", []byte("<html>backend error</html>"))
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatJSON, "")
	require.NoError(t, os.MkdirAll(filepath.Join(w.Root, ".git"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(w.Root, ".git", "HEAD"), []byte("ref"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(w.Root, RepoInitFile), []byte("init"), 0600))

	_, err := w.Write("networks/N_1 - HQ", "network_Settings", []byte(`{"a":1}`))
	require.NoError(t, err)

	require.NoError(t, w.Reset())

	assert.FileExists(t, filepath.Join(w.Root, ".git", "HEAD"))
	assert.FileExists(t, filepath.Join(w.Root, RepoInitFile))
	assert.NoDirExists(t, filepath.Join(w.Root, "networks"))
}

func TestStats(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, config.FormatJSON, "")
	require.NoError(t, os.MkdirAll(filepath.Join(w.Root, ".git", "objects"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(w.Root, RepoInitFile), []byte("init"), 0600))

	_, err := w.Write("", "org_Organization", []byte(`{"id":"1"}`))
	require.NoError(t, err)
	_, err = w.Write("networks/N_1 - HQ", "network_Settings", []byte(`{"a":1}`))
	require.NoError(t, err)

	dirs, files, err := w.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, dirs) // networks/ and networks/N_1 - HQ
	assert.Equal(t, 2, files)
}

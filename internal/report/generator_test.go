package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/gitrepo"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/scaninfo"
)

// fakeRenderer records render requests and writes stub pages, standing in
// for the diff2html binary.
type fakeRenderer struct {
	requests []RenderRequest
}

func (f *fakeRenderer) Render(_ context.Context, req RenderRequest) error {
	f.requests = append(f.requests, req)
	return os.WriteFile(req.OutFile, []byte("<html>diff of "+req.Item+"</html>"), 0640)
}

func newTestRepo(t *testing.T) gitrepo.Repo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings")
	repo, err := gitrepo.Ensure(path, "Test Archiver", "archiver@example.com")
	require.NoError(t, err)

	write := func(name, content string) {
		full := filepath.Join(path, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0600))
	}

	write("org_Organization.json", `{"id":"1"}`)
	write("networks/N_1 - HQ/network_Settings.json", `{"a":1}`)
	_, _, err = repo.CommitAll("first scan")
	require.NoError(t, err)

	write("networks/N_1 - HQ/network_Settings.json", `{"a":2}`)
	write("org_Networks.json", `[]`)
	_, _, err = repo.CommitAll("second scan")
	require.NoError(t, err)
	return repo
}

func newTestGenerator(t *testing.T) (*Generator, *fakeRenderer) {
	t.Helper()
	renderer := &fakeRenderer{}
	return &Generator{
		WebDir:   t.TempDir(),
		WebURL:   "/DevNetDashboards/MerakiGit",
		OrgID:    "123456",
		Renderer: renderer,
	}, renderer
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	g, renderer := newTestGenerator(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	run, err := g.Generate(context.Background(), repo, "HEAD~1", "HEAD", now)
	require.NoError(t, err)

	assert.Equal(t, "20260831-100000", run.Timestamp)
	require.Len(t, run.Items, 2)
	assert.Equal(t, "networks/N_1 - HQ/network_Settings.json", run.Items[0].Path)
	assert.Equal(t, "networks-N_1 - HQ-network_Settings.json.html", run.Items[0].FileName)
	assert.Equal(t, "Modified", run.Items[0].Status)
	assert.Equal(t, "org_Networks.json", run.Items[1].Path)
	assert.Equal(t, "Added", run.Items[1].Status)

	// One render per changed file, against the installed template.
	require.Len(t, renderer.requests, 2)
	assert.Equal(t, repo.Path(), renderer.requests[0].RepoDir)
	assert.FileExists(t, filepath.Join(g.WebDir, TemplateFileName))

	// Run index page and per-item pages.
	assert.FileExists(t, run.IndexPath)
	index, err := os.ReadFile(run.IndexPath)
	require.NoError(t, err)
	assert.Contains(t, string(index), "org_Networks.json")
	assert.Contains(t, string(index),
		"/DevNetDashboards/MerakiGit/orgs/123456/reports/20260831-100000/org_Networks.json.html")

	// Latest-report symlink points at the new index.
	target, err := os.Readlink(filepath.Join(g.OrgWebDir(), LatestLink))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("reports", "20260831-100000.html"), target)

	// State and summary page updated.
	st, err := LoadState(g.OrgWebDir(), "123456")
	require.NoError(t, err)
	require.Len(t, st.Reports, 1)
	require.NotNil(t, st.LatestDiff)
	assert.Len(t, st.LatestDiff.Items, 2)
	assert.FileExists(t, filepath.Join(g.OrgWebDir(), "index.html"))
}

func TestGenerateEmptyChangeSet(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	g, renderer := newTestGenerator(t)
	now := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)

	run, err := g.Generate(context.Background(), repo, "HEAD", "HEAD", now)
	require.NoError(t, err)

	assert.Empty(t, run.Items)
	assert.Empty(t, renderer.requests)

	index, err := os.ReadFile(run.IndexPath)
	require.NoError(t, err)
	assert.Contains(t, string(index), "No settings changed")
}

func TestGenerateAccumulatesReportHistory(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	g, _ := newTestGenerator(t)

	_, err := g.Generate(context.Background(), repo, "HEAD~1", "HEAD", time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), repo, "HEAD~1", "HEAD", time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	st, err := LoadState(g.OrgWebDir(), "123456")
	require.NoError(t, err)
	require.Len(t, st.Reports, 2)
	assert.Equal(t, "20260831-100000", st.Reports[0].Timestamp, "newest report first")
}

func TestUpdateScanHistory(t *testing.T) {
	t.Parallel()

	g, _ := newTestGenerator(t)
	commits := []gitrepo.CommitInfo{
		{Hash: "abc123", Message: "Commit from Meraki scan finished on Sunday\n"},
		{Hash: "def456", Message: "Initial commit"},
	}
	metrics := scaninfo.Metrics{OrgSettings: 12, Devices: 3, DeviceSettings: 7, Networks: 2, NetworkSettings: 40}

	require.NoError(t, g.UpdateScanHistory("Acme Corp", commits, metrics))

	st, err := LoadState(g.OrgWebDir(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", st.OrgName)
	assert.Equal(t, 40, st.NetworkSettings)
	require.Len(t, st.Scans, 2)
	assert.Equal(t, "Commit from Meraki scan finished on Sunday", st.Scans[0].Message)

	page, err := os.ReadFile(filepath.Join(g.OrgWebDir(), "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Acme Corp")
	assert.Contains(t, string(page), "abc123")
}

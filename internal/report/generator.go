package report

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/gitrepo"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/scaninfo"
)

// LatestLink is the symlink kept pointing at the newest run index page.
const LatestLink = "DBContent-Latest.html"

// Timestamp layouts for report naming and display.
const (
	runTimestampLayout = "20060102-150405"
	verboseLayout      = "Monday, January 02, 2006 at 15:04:05 MST"
	commitTimeLayout   = "Mon Jan 2 15:04:05 2006 -0700"
)

var (
	runIndexTmpl = template.Must(template.ParseFS(templates, "templates/run_index.html.tmpl"))
	orgIndexTmpl = template.Must(template.ParseFS(templates, "templates/org_index.html.tmpl"))
)

// ChangedItem is one changed settings file in a report run.
type ChangedItem struct {
	// Path is the repo-relative path; FileName the flattened HTML page
	// name under the run directory.
	Path     string
	FileName string
	Status   string
}

// Run is the outcome of one report generation.
type Run struct {
	Timestamp string
	IndexPath string
	Items     []ChangedItem
}

// Generator produces diff report pages for one organization.
type Generator struct {
	// WebDir is the web publishing root; WebURL the URL prefix it is
	// served under.
	WebDir string
	WebURL string
	OrgID  string

	Renderer Renderer
}

// OrgWebDir is the organization's directory under the publishing root.
func (g *Generator) OrgWebDir() string {
	return filepath.Join(g.WebDir, "orgs", g.OrgID)
}

// Generate renders the diff pages comparing two commits, writes the run
// index page, repoints the latest-report symlink and re-renders the org
// summary page.
func (g *Generator) Generate(ctx context.Context, repo gitrepo.Repo, first, second string, now time.Time) (*Run, error) {
	firstHash, err := repo.Resolve(first)
	if err != nil {
		return nil, err
	}
	secondHash, err := repo.Resolve(second)
	if err != nil {
		return nil, err
	}
	firstTime, err := repo.CommitTime(first)
	if err != nil {
		return nil, err
	}
	secondTime, err := repo.CommitTime(second)
	if err != nil {
		return nil, err
	}

	changes, err := repo.DiffNameStatus(first, second)
	if err != nil {
		return nil, err
	}

	run := &Run{Timestamp: now.Format(runTimestampLayout)}
	runDir := filepath.Join(g.OrgWebDir(), "reports", run.Timestamp)
	if err := os.MkdirAll(runDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	tplPath, err := EnsureTemplate(g.WebDir)
	if err != nil {
		return nil, err
	}

	labelA := firstHash + " scan datetime " + firstTime.Format(commitTimeLayout)
	labelB := secondHash + " scan datetime " + secondTime.Format(commitTimeLayout)

	for _, group := range []struct {
		status string
		paths  []string
	}{
		{"Added", changes.Added},
		{"Modified", changes.Modified},
		{"Deleted", changes.Deleted},
	} {
		for _, path := range group.paths {
			item := ChangedItem{
				Path:     path,
				FileName: flattenItem(path) + ".html",
				Status:   group.status,
			}
			err := g.Renderer.Render(ctx, RenderRequest{
				RepoDir:      repo.Path(),
				TemplatePath: tplPath,
				OutFile:      filepath.Join(runDir, item.FileName),
				First:        first,
				Second:       second,
				Item:         path,
				CommitALabel: labelA,
				CommitBLabel: labelB,
				ReportDate:   run.Timestamp,
			})
			if err != nil {
				return nil, err
			}
			run.Items = append(run.Items, item)
		}
	}
	sort.Slice(run.Items, func(i, j int) bool { return run.Items[i].Path < run.Items[j].Path })

	run.IndexPath = runDir + ".html"
	if err := g.writeRunIndex(run, first, second, firstTime, secondTime); err != nil {
		return nil, err
	}
	if err := g.updateLatestLink(run.Timestamp); err != nil {
		return nil, err
	}

	st, err := LoadState(g.OrgWebDir(), g.OrgID)
	if err != nil {
		return nil, err
	}
	itemPaths := make([]string, 0, len(run.Items))
	for _, item := range run.Items {
		itemPaths = append(itemPaths, item.Path)
	}
	st.LatestDiff = &LatestDiff{
		FirstCommit:  firstHash,
		FirstTime:    firstTime.Format(commitTimeLayout),
		SecondCommit: secondHash,
		SecondTime:   secondTime.Format(commitTimeLayout),
		Items:        itemPaths,
	}
	st.Reports = append([]ReportEntry{{
		Timestamp:        run.Timestamp,
		TimestampVerbose: now.Format(verboseLayout),
		FirstHash:        firstHash,
		FirstTime:        firstTime.Format(commitTimeLayout),
		SecondHash:       secondHash,
		SecondTime:       secondTime.Format(commitTimeLayout),
	}}, st.Reports...)
	if err := st.Save(g.OrgWebDir()); err != nil {
		return nil, err
	}
	if err := g.RenderIndex(st); err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateScanHistory refreshes the org summary page after a scan: name,
// archive metrics and the recent commit table.
func (g *Generator) UpdateScanHistory(orgName string, commits []gitrepo.CommitInfo, m scaninfo.Metrics) error {
	st, err := LoadState(g.OrgWebDir(), g.OrgID)
	if err != nil {
		return err
	}
	if orgName != "" {
		st.OrgName = orgName
	}
	st.OrgSettings = m.OrgSettings
	st.Devices = m.Devices
	st.DeviceSettings = m.DeviceSettings
	st.Networks = m.Networks
	st.NetworkSettings = m.NetworkSettings

	st.Scans = st.Scans[:0]
	for _, c := range commits {
		st.Scans = append(st.Scans, ScanEntry{
			Hash:    c.Hash,
			Message: strings.TrimSpace(c.Message),
		})
	}

	if err := st.Save(g.OrgWebDir()); err != nil {
		return err
	}
	return g.RenderIndex(st)
}

// RenderIndex re-renders the org summary page from state.
func (g *Generator) RenderIndex(st *State) error {
	if err := os.MkdirAll(g.OrgWebDir(), 0750); err != nil {
		return fmt.Errorf("failed to create org web directory: %w", err)
	}
	f, err := os.Create(filepath.Join(g.OrgWebDir(), "index.html"))
	if err != nil {
		return fmt.Errorf("failed to create org summary page: %w", err)
	}
	defer f.Close()
	if err := orgIndexTmpl.Execute(f, st); err != nil {
		return fmt.Errorf("failed to render org summary page: %w", err)
	}
	return nil
}

func (g *Generator) writeRunIndex(run *Run, first, second string, firstTime, secondTime time.Time) error {
	f, err := os.Create(run.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to create run index page: %w", err)
	}
	defer f.Close()

	data := struct {
		Timestamp    string
		FirstCommit  string
		FirstTime    string
		SecondCommit string
		SecondTime   string
		BaseURL      string
		Items        []ChangedItem
	}{
		Timestamp:    run.Timestamp,
		FirstCommit:  first,
		FirstTime:    firstTime.Format(commitTimeLayout),
		SecondCommit: second,
		SecondTime:   secondTime.Format(commitTimeLayout),
		BaseURL:      g.WebURL + "/orgs/" + g.OrgID + "/reports/" + run.Timestamp,
		Items:        run.Items,
	}
	if err := runIndexTmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render run index page: %w", err)
	}
	return nil
}

func (g *Generator) updateLatestLink(timestamp string) error {
	link := filepath.Join(g.OrgWebDir(), LatestLink)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace latest-report link: %w", err)
	}
	if err := os.Symlink(filepath.Join("reports", timestamp+".html"), link); err != nil {
		// Filesystems without symlink support still get the reports.
		slog.Warn("Failed to create latest-report link", "error", err)
	}
	return nil
}

// flattenItem maps a repo path to a flat HTML page name the way the report
// links expect it back.
func flattenItem(path string) string {
	if strings.HasPrefix(path, "networks/") || strings.HasPrefix(path, "devices/") {
		return strings.ReplaceAll(path, "/", "-")
	}
	return path
}

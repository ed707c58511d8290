// Package report generates the HTML diff reports and the per-organization
// summary pages published to the web directory. Individual file diffs are
// rendered by the diff2html-cli tool; the index pages are rendered from
// embedded templates with the page state kept in a JSON file, so every run
// re-renders them in full.
package report

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

//go:embed templates
var templates embed.FS

// TemplateFileName is the diff2html page template expected in the web
// publishing directory. A bundled copy is installed when missing.
const TemplateFileName = "diff-hwt.html"

// Sentinel tokens the diff2html page template carries; the renderer fills
// them in after diff2html writes the page.
const (
	tokenCommitA    = "###COMMITA###"
	tokenCommitB    = "###COMMITB###"
	tokenObject     = "###OBJECT###"
	tokenReportDate = "###REPORTDATE###"
)

// RenderRequest describes one file diff page.
type RenderRequest struct {
	// RepoDir is the git working tree diff2html runs in.
	RepoDir string

	// TemplatePath is the diff2html page template.
	TemplatePath string

	// OutFile is the HTML file to produce.
	OutFile string

	// First and Second are the commit references to compare.
	First, Second string

	// Item is the repo-relative path being diffed.
	Item string

	// CommitALabel, CommitBLabel and ReportDate replace the template's
	// sentinel tokens.
	CommitALabel string
	CommitBLabel string
	ReportDate   string
}

// Renderer renders one file's diff between two commits into an HTML page.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) error
}

type diff2htmlRenderer struct {
	bin string
}

// NewDiff2HTMLRenderer creates a Renderer shelling out to diff2html-cli.
func NewDiff2HTMLRenderer(bin string) Renderer {
	if bin == "" {
		bin = "diff2html"
	}
	return &diff2htmlRenderer{bin: bin}
}

func (r *diff2htmlRenderer) Render(ctx context.Context, req RenderRequest) error {
	// diff2html -s side --hwt <tpl> -F <out> -- -W <first> <second> -- <item>
	cmd := exec.CommandContext(ctx, r.bin,
		"-s", "side",
		"--hwt", req.TemplatePath,
		"-F", req.OutFile,
		"--", "-W", req.First, req.Second, "--", req.Item)
	cmd.Dir = req.RepoDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("diff2html failed for %s: %w: %s", req.Item, err, strings.TrimSpace(string(out)))
	}

	page, err := os.ReadFile(req.OutFile)
	if err != nil {
		return fmt.Errorf("failed to read rendered page: %w", err)
	}
	replaced := strings.NewReplacer(
		tokenCommitA, req.CommitALabel,
		tokenCommitB, req.CommitBLabel,
		tokenObject, req.Item,
		tokenReportDate, req.ReportDate,
	).Replace(string(page))
	if err := os.WriteFile(req.OutFile, []byte(replaced), 0640); err != nil {
		return fmt.Errorf("failed to rewrite rendered page: %w", err)
	}
	return nil
}

// EnsureTemplate installs the bundled diff2html page template into the web
// publishing directory when no operator-customized copy exists yet.
func EnsureTemplate(webDir string) (string, error) {
	path := filepath.Join(webDir, TemplateFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	data, err := templates.ReadFile("templates/" + TemplateFileName)
	if err != nil {
		return "", fmt.Errorf("bundled diff template missing: %w", err)
	}
	if err := os.MkdirAll(webDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create web directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("failed to install diff template: %w", err)
	}
	return path, nil
}

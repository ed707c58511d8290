// Package catalog loads the endpoint rule table that drives call planning.
// The table is a CSV derived from the dashboard OpenAPI specification, one
// row per GET operation, annotated with the applicability logic deciding
// which entities the operation runs against.
package catalog

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/meraki"
)

// RulesFileName is the per-organization rule table file under scaninfo/.
// Operators edit it to tune which settings future scans collect.
const RulesFileName = "API_GET_operations.csv"

// Logic values with reserved meaning. Anything else in the Logic column is
// a comma-separated product type list.
const (
	LogicSkipped     = "skipped"
	LogicScript      = "script"
	LogicSSIDs       = "ssids"
	LogicNonTemplate = "non-template"
	LogicNonBound    = "non-bound"
)

//go:embed default_rules.csv
var defaultRules []byte

// Rule is one row of the endpoint rule table.
type Rule struct {
	// OperationID is the OpenAPI operation id, e.g. getNetworkSettings.
	OperationID string

	// Tags are the OpenAPI tags; the first tag is the operation scope
	// (organizations, networks, devices, or a product type).
	Tags []string

	// Logic is the applicability annotation. See the Logic* constants.
	Logic string

	// Parameters are the declared OpenAPI parameter names.
	Parameters []string

	// Path is the OpenAPI URI template for the operation.
	Path string
}

// Skipped reports whether this rule never generates calls.
func (r Rule) Skipped() bool {
	return r.Logic == LogicSkipped
}

// ScriptOnly reports whether this rule is only invoked by a special-cased
// planning phase rather than the generic planners.
func (r Rule) ScriptOnly() bool {
	return r.Logic == LogicScript
}

// Scope is the first OpenAPI tag: organizations, networks, devices or a
// product type such as appliance or wireless.
func (r Rule) Scope() string {
	if len(r.Tags) == 0 {
		return ""
	}
	return r.Tags[0]
}

// HasParameter reports whether the operation declares the named parameter.
func (r Rule) HasParameter(name string) bool {
	for _, p := range r.Parameters {
		if p == name {
			return true
		}
	}
	return false
}

// ProductLogic interprets the Logic column as a product type list. Empty
// for reserved Logic values.
func (r Rule) ProductLogic() []string {
	switch r.Logic {
	case "", LogicSkipped, LogicScript, LogicSSIDs, LogicNonTemplate, LogicNonBound:
		return nil
	}
	parts := strings.Split(r.Logic, ",")
	products := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	return products
}

// Catalog is the loaded rule table.
type Catalog struct {
	Rules []Rule

	byID map[string]Rule
}

// Find returns the rule for an operation id.
func (c *Catalog) Find(operationID string) (Rule, bool) {
	r, ok := c.byID[operationID]
	return r, ok
}

// Load reads the rule table at path, bootstrapping it from the bundled
// default on first run.
func Load(path string) (*Catalog, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create scaninfo directory: %w", err)
		}
		if err := os.WriteFile(path, defaultRules, 0600); err != nil {
			return nil, fmt.Errorf("failed to bootstrap default rule table: %w", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule table: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	cat, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule table %s: %w", path, err)
	}
	return cat, nil
}

// Parse reads a rule table CSV. Columns: operationId, tags, Logic,
// parameters, path. Tags and parameters are semicolon-separated.
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}

	cat := &Catalog{byID: make(map[string]Rule, len(records)-1)}
	for i, rec := range records {
		if i == 0 {
			// Header row.
			continue
		}
		rule := Rule{
			OperationID: strings.TrimSpace(rec[0]),
			Tags:        splitList(rec[1]),
			Logic:       strings.TrimSpace(rec[2]),
			Parameters:  splitList(rec[3]),
			Path:        strings.TrimSpace(rec[4]),
		}
		if rule.OperationID == "" {
			return nil, fmt.Errorf("row %d: empty operationId", i+1)
		}
		cat.Rules = append(cat.Rules, rule)
		cat.byID[rule.OperationID] = rule
	}
	return cat, nil
}

func splitList(s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WriteOperationsCSV exports the GET operations of the current OpenAPI
// specification. The export is compared against the rule table after a scan
// to surface operations the run never exercised.
func WriteOperationsCSV(path string, ops []meraki.Operation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create operations export: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"operationId", "tags", "description", "parameters", "path"}); err != nil {
		return err
	}
	for _, op := range ops {
		record := []string{
			op.OperationID,
			strings.Join(op.Tags, ";"),
			op.Description,
			strings.Join(op.Parameters, ";"),
			op.Path,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// UnusedOperations returns the operation ids present in the current OpenAPI
// spec that neither completed during the scan nor are marked skipped in the
// rule table. These are candidates for new rule rows.
func (c *Catalog) UnusedOperations(ops []meraki.Operation, completed map[string]bool) []string {
	var unused []string
	for _, op := range ops {
		if completed[op.OperationID] {
			continue
		}
		if rule, ok := c.Find(op.OperationID); ok && rule.Skipped() {
			continue
		}
		unused = append(unused, op.OperationID)
	}
	return unused
}

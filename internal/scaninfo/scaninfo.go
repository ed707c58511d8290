// Package scaninfo handles the per-organization scan bookkeeping that lives
// next to the settings repository: scan log records, archive metrics and the
// pre-scan runtime estimate.
package scaninfo

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
)

// TimestampLayout names scan log files and commit messages consistently, so
// the report generator can correlate the two.
const TimestampLayout = "2006-01-02--15-04"

// Record is one scan log entry, written as scanlog-<ts>.json when a scan
// commits.
type Record struct {
	ScanEnd string `json:"scanend"`
	OrgID   string `json:"orgid"`
}

// WriteRecord writes the scan log record for a scan that finished at the
// given time and returns the file path.
func WriteRecord(scaninfoDir, orgID string, finished time.Time) (string, error) {
	if err := os.MkdirAll(scaninfoDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create scaninfo directory: %w", err)
	}

	rec := Record{ScanEnd: finished.Format(TimestampLayout), OrgID: orgID}
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode scan record: %w", err)
	}

	path := filepath.Join(scaninfoDir, "scanlog-"+rec.ScanEnd+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0640); err != nil {
		return "", fmt.Errorf("failed to write scan record: %w", err)
	}
	return path, nil
}

// ListRecords reads every scanlog-*.json record, newest first.
func ListRecords(scaninfoDir string) ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(scaninfoDir, "scanlog-*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scan records: %w", err)
	}

	records := make([]Record, 0, len(matches))
	for _, match := range matches {
		data, err := os.ReadFile(match)
		if err != nil {
			return nil, fmt.Errorf("failed to read scan record %s: %w", match, err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse scan record %s: %w", match, err)
		}
		records = append(records, rec)
	}
	// Glob sorts lexically and the timestamp layout sorts with time.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Metrics summarizes what one scan archived, read back from the settings
// tree after the commit.
type Metrics struct {
	OrgSettings     int
	Devices         int
	DeviceSettings  int
	Networks        int
	NetworkSettings int
}

// Total is the number of settings files across all levels.
func (m Metrics) Total() int {
	return m.OrgSettings + m.DeviceSettings + m.NetworkSettings
}

// CollectMetrics counts archived settings in the tree: top-level files are
// org settings, one directory per device and network, settings files inside
// each.
func CollectMetrics(settingsRoot string) (Metrics, error) {
	var m Metrics

	entries, err := os.ReadDir(settingsRoot)
	if err != nil {
		return m, fmt.Errorf("failed to read settings tree: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			m.OrgSettings++
		}
	}

	m.Devices, m.DeviceSettings, err = countGrouped(filepath.Join(settingsRoot, "devices"))
	if err != nil {
		return m, err
	}
	m.Networks, m.NetworkSettings, err = countGrouped(filepath.Join(settingsRoot, "networks"))
	if err != nil {
		return m, err
	}
	return m, nil
}

func countGrouped(dir string) (groups, files int, err error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		groups++
		inner, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		for _, f := range inner {
			if !f.IsDir() && filepath.Ext(f.Name()) == ".json" {
				files++
			}
		}
	}
	return groups, files, nil
}

// Estimate is the projected cost of scanning an organization, derived from
// observed per-family call counts.
type Estimate struct {
	TotalDevices int
	TotalCalls   int
	Minutes      int

	// DevicesByFamily and NetworksByFamily break the inventory down the
	// way the estimate weighs it.
	DevicesByFamily  map[string]int
	NetworksByFamily map[string]int
}

// Hours splits Minutes for display.
func (e Estimate) Hours() (hours, minutes int) {
	return e.Minutes / 60, e.Minutes % 60
}

// Per-family call weights, from observed scan behavior.
var (
	deviceCallWeights = map[string]int{
		entity.ProductWireless:        2,
		entity.ProductSwitch:          3,
		entity.ProductCamera:          3,
		entity.ProductCellularGateway: 2,
		entity.ProductAppliance:       1,
		entity.ProductSensor:          0,
	}
	networkCallWeights = map[string]int{
		entity.ProductWireless:        19,
		entity.ProductSwitch:          22,
		entity.ProductAppliance:       32,
		entity.ProductCellularGateway: 6,
		entity.ProductCamera:          4,
	}
)

// orgCallCount is the fixed cost of the org-level phase.
const orgCallCount = 19

// EstimateScan projects the API call count and runtime for scanning the
// inventory. The result is a pure function of the inventory.
func EstimateScan(inv *entity.Inventory) Estimate {
	est := Estimate{
		TotalDevices:     len(inv.Devices),
		DevicesByFamily:  map[string]int{},
		NetworksByFamily: map[string]int{},
	}

	calls := orgCallCount
	for _, d := range inv.Devices {
		family := d.Family()
		if family == "" {
			// Unknown models scan like appliances.
			family = entity.ProductAppliance
		}
		est.DevicesByFamily[family]++
		calls += deviceCallWeights[family]
	}

	count := func(n entity.Network) {
		for product, weight := range networkCallWeights {
			if !n.HasProduct(product) {
				continue
			}
			// Camera settings are not collected from templates.
			if product == entity.ProductCamera && n.IsTemplate() {
				continue
			}
			est.NetworksByFamily[product]++
			calls += weight
		}
	}
	for _, n := range inv.Networks {
		count(n)
	}
	for _, t := range inv.Templates {
		count(t.AsNetwork())
	}

	est.TotalCalls = calls
	// Four calls per second is the practical per-org rate limit.
	est.Minutes = int(math.Ceil(float64(calls) / 4 / 60))
	return est
}

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StateFileName holds the data the org summary page is rendered from. It is
// the authoritative page state; index.html is a pure projection of it.
const StateFileName = "state.json"

// ScanEntry is one row of the settings-scan history table.
type ScanEntry struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

// ReportEntry is one row of the diff-report history table.
type ReportEntry struct {
	// Timestamp names the run subdirectory; TimestampVerbose is shown.
	Timestamp        string `json:"timestamp"`
	TimestampVerbose string `json:"timestampVerbose"`

	FirstHash  string `json:"firstHash"`
	FirstTime  string `json:"firstTime"`
	SecondHash string `json:"secondHash"`
	SecondTime string `json:"secondTime"`
}

// LatestDiff summarizes the most recent report run for the summary page's
// latest-diff tab.
type LatestDiff struct {
	FirstCommit  string   `json:"firstCommit"`
	FirstTime    string   `json:"firstTime"`
	SecondCommit string   `json:"secondCommit"`
	SecondTime   string   `json:"secondTime"`
	Items        []string `json:"items"`
}

// State is the persisted page state for one organization.
type State struct {
	OrgID   string `json:"orgId"`
	OrgName string `json:"orgName,omitempty"`

	// Archive metrics from the latest scan.
	OrgSettings     int `json:"orgSettings"`
	Devices         int `json:"devices"`
	DeviceSettings  int `json:"deviceSettings"`
	Networks        int `json:"networks"`
	NetworkSettings int `json:"networkSettings"`

	Scans      []ScanEntry   `json:"scans"`
	Reports    []ReportEntry `json:"reports"`
	LatestDiff *LatestDiff   `json:"latestDiff,omitempty"`
}

// LoadState reads the state file under the org web directory. A missing
// file yields a fresh state for the organization.
func LoadState(orgWebDir, orgID string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(orgWebDir, StateFileName))
	if os.IsNotExist(err) {
		return &State{OrgID: orgID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse report state: %w", err)
	}
	if st.OrgID == "" {
		st.OrgID = orgID
	}
	return &st, nil
}

// Save writes the state file under the org web directory.
func (s *State) Save(orgWebDir string) error {
	if err := os.MkdirAll(orgWebDir, 0750); err != nil {
		return fmt.Errorf("failed to create org web directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode report state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(orgWebDir, StateFileName), append(data, '\n'), 0640); err != nil {
		return fmt.Errorf("failed to write report state: %w", err)
	}
	return nil
}

package scaninfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
)

func TestWriteAndListRecords(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "scaninfo")

	first := time.Date(2026, 8, 30, 22, 15, 0, 0, time.UTC)
	second := time.Date(2026, 8, 31, 6, 30, 0, 0, time.UTC)

	path, err := WriteRecord(dir, "123456", first)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scanlog-2026-08-30--22-15.json"), path)

	_, err = WriteRecord(dir, "123456", second)
	require.NoError(t, err)

	records, err := ListRecords(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-08-31--06-30", records[0].ScanEnd, "newest record first")
	assert.Equal(t, "2026-08-30--22-15", records[1].ScanEnd)
	assert.Equal(t, "123456", records[0].OrgID)
}

func TestListRecordsEmptyDir(t *testing.T) {
	t.Parallel()

	records, err := ListRecords(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCollectMetrics(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write := func(name string) {
		full := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0750))
		require.NoError(t, os.WriteFile(full, []byte("{}"), 0600))
	}
	write("org_Organization.json")
	write("org_Networks.json")
	write("repo_init") // not a settings file
	write("devices/Q2A - MR44/device_ManagementInterface.json")
	write("devices/Q2B - MS250-48/device_ManagementInterface.json")
	write("devices/Q2B - MS250-48/device_SwitchPorts.json")
	write("networks/N_1 - HQ/network_Settings.json")

	m, err := CollectMetrics(root)
	require.NoError(t, err)
	assert.Equal(t, 2, m.OrgSettings)
	assert.Equal(t, 2, m.Devices)
	assert.Equal(t, 3, m.DeviceSettings)
	assert.Equal(t, 1, m.Networks)
	assert.Equal(t, 1, m.NetworkSettings)
	assert.Equal(t, 6, m.Total())
}

func TestEstimateScan(t *testing.T) {
	t.Parallel()

	inv := &entity.Inventory{
		Networks: []entity.Network{
			{ID: "N_1", ProductTypes: []string{entity.ProductWireless, entity.ProductAppliance}},
			{ID: "N_2", ProductTypes: []string{entity.ProductSwitch}},
			{ID: "N_3", ProductTypes: []string{entity.ProductCamera}},
		},
		Templates: []entity.Template{
			// Camera templates carry no camera weight.
			{ID: "T_1", ProductTypes: []string{entity.ProductWireless, entity.ProductCamera}},
		},
		Devices: []entity.Device{
			{Serial: "1", Model: "MR44"},
			{Serial: "2", Model: "MS250-48"},
			{Serial: "3", Model: "MX67"},
			{Serial: "4", Model: "MV12"},
			{Serial: "5", Model: "MT10"},
			{Serial: "6", Model: "XX99"}, // unknown scans like an appliance
		},
	}

	est := EstimateScan(inv)

	// org 19 + devices (2+3+1+3+0+1) + networks (19*2 + 22 + 32 + 4)
	assert.Equal(t, 19+10+96, est.TotalCalls)
	assert.Equal(t, 6, est.TotalDevices)
	assert.Equal(t, 1, est.Minutes) // ceil(125/240)
	assert.Equal(t, 2, est.NetworksByFamily[entity.ProductWireless])
	assert.Equal(t, 1, est.NetworksByFamily[entity.ProductCamera])
	assert.Equal(t, 2, est.DevicesByFamily[entity.ProductAppliance])

	// Deterministic.
	assert.Equal(t, est.TotalCalls, EstimateScan(inv).TotalCalls)
}

func TestEstimateHours(t *testing.T) {
	t.Parallel()

	e := Estimate{Minutes: 150}
	h, m := e.Hours()
	assert.Equal(t, 2, h)
	assert.Equal(t, 30, m)
}

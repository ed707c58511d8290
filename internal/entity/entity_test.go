package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceFamily(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model  string
		family string
	}{
		{"MR44", ProductWireless},
		{"CW9166I", ProductWireless},
		{"MS225-48", ProductSwitch},
		{"MV12", ProductCamera},
		{"MG21", ProductCellularGateway},
		{"MX64", ProductAppliance},
		{"vMX-S", ProductAppliance},
		{"Z3C", ProductAppliance},
		{"Z1", ProductAppliance},
		{"MT10", ProductSensor},
		{"X", ""},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			d := Device{Model: tc.model}
			assert.Equal(t, tc.family, d.Family())
		})
	}
}

func TestTemplateAsNetwork(t *testing.T) {
	t.Parallel()

	tpl := Template{ID: "L_1", Name: "Branch template", ProductTypes: []string{ProductSwitch}}
	n := tpl.AsNetwork()

	assert.True(t, n.IsTemplate())
	assert.False(t, n.IsBound())
	assert.Equal(t, "L_1", n.ID)
	assert.True(t, n.HasProduct(ProductSwitch))
}

func TestInventoryCombinedNetworks(t *testing.T) {
	t.Parallel()

	inv := &Inventory{
		Networks:  []Network{{ID: "N_1"}},
		Templates: []Template{{ID: "L_1"}},
	}

	combined := inv.CombinedNetworks()
	assert.Len(t, combined, 2)
	assert.False(t, combined[0].IsTemplate())
	assert.True(t, combined[1].IsTemplate())
}

func TestInventoryFilterByTag(t *testing.T) {
	t.Parallel()

	inv := &Inventory{
		Networks: []Network{
			{ID: "N_1", Tags: []string{"lab"}},
			{ID: "N_2", Tags: []string{"prod"}},
		},
		Templates: []Template{{ID: "L_1"}},
		Devices: []Device{
			{Serial: "Q2AB-1", NetworkID: "N_1"},
			{Serial: "Q2AB-2", NetworkID: "N_2"},
		},
	}

	inv.FilterByTag("lab")

	assert.Len(t, inv.Networks, 1)
	assert.Equal(t, "N_1", inv.Networks[0].ID)
	assert.Len(t, inv.Devices, 1)
	assert.Equal(t, "Q2AB-1", inv.Devices[0].Serial)
	assert.Empty(t, inv.Templates)
}

func TestInventoryFilterByTagNoop(t *testing.T) {
	t.Parallel()

	inv := &Inventory{
		Networks:  []Network{{ID: "N_1"}},
		Templates: []Template{{ID: "L_1"}},
	}
	inv.FilterByTag("")

	assert.Len(t, inv.Networks, 1)
	assert.Len(t, inv.Templates, 1)
}

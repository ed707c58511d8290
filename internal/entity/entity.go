// Package entity defines snapshots of the Meraki dashboard objects one
// archive run operates on: organizations, networks, configuration
// templates and devices.
package entity

import "slices"

// Product type strings as the dashboard API reports them.
const (
	ProductAppliance       = "appliance"
	ProductSwitch          = "switch"
	ProductWireless        = "wireless"
	ProductCamera          = "camera"
	ProductCellularGateway = "cellularGateway"
	ProductSensor          = "sensor"
)

// Organization is one Meraki organization the API key can access.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Network is a dashboard network. Configuration templates come back from a
// different endpoint but share the same shape, minus the Tags field.
type Network struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ProductTypes     []string `json:"productTypes"`
	Tags             []string `json:"tags"`
	ConfigTemplateID string   `json:"configTemplateId,omitempty"`

	// template marks networks that are really configuration templates.
	template bool
}

// Template is a configuration template. It is archived through the same
// network-scoped endpoints, so planning converts it to a Network first.
type Template struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ProductTypes []string `json:"productTypes"`
}

// Device is one piece of hardware claimed into a network.
type Device struct {
	Serial    string `json:"serial"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	NetworkID string `json:"networkId"`
}

// AsNetwork converts a template into a Network flagged as template-backed.
func (t Template) AsNetwork() Network {
	return Network{
		ID:           t.ID,
		Name:         t.Name,
		ProductTypes: t.ProductTypes,
		template:     true,
	}
}

// IsTemplate reports whether this network is a configuration template.
func (n Network) IsTemplate() bool {
	return n.template
}

// IsBound reports whether this network is bound to a configuration template.
func (n Network) IsBound() bool {
	return n.ConfigTemplateID != ""
}

// HasProduct reports whether the network includes the given product type.
func (n Network) HasProduct(product string) bool {
	return slices.Contains(n.ProductTypes, product)
}

// HasTag reports whether the network carries the given dashboard tag.
func (n Network) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// Family maps the device model prefix to its product family. Unknown models
// return an empty string and are skipped by the device planner.
func (d Device) Family() string {
	if len(d.Model) < 2 {
		return ""
	}
	switch d.Model[:2] {
	case "MR", "CW":
		return ProductWireless
	case "MS":
		return ProductSwitch
	case "MV":
		return ProductCamera
	case "MG":
		return ProductCellularGateway
	case "MT":
		return ProductSensor
	case "MX", "vM", "Z1", "Z3":
		return ProductAppliance
	default:
		return ""
	}
}

// Inventory is the entity snapshot one archive run works from. It is
// captured while the org-level phase executes and passed explicitly to the
// later phases.
type Inventory struct {
	Networks  []Network
	Templates []Template
	Devices   []Device
}

// CombinedNetworks returns networks plus templates converted to networks,
// which is the unit most network-scoped phases iterate over.
func (inv *Inventory) CombinedNetworks() []Network {
	combined := make([]Network, 0, len(inv.Networks)+len(inv.Templates))
	combined = append(combined, inv.Networks...)
	for _, t := range inv.Templates {
		combined = append(combined, t.AsNetwork())
	}
	return combined
}

// FilterByTag narrows the inventory to networks carrying the tag and the
// devices inside them. Templates have no tags and are dropped entirely when
// a tag filter is active.
func (inv *Inventory) FilterByTag(tag string) {
	if tag == "" {
		return
	}
	networks := make([]Network, 0, len(inv.Networks))
	ids := make(map[string]bool, len(inv.Networks))
	for _, n := range inv.Networks {
		if n.HasTag(tag) {
			networks = append(networks, n)
			ids[n.ID] = true
		}
	}
	devices := make([]Device, 0, len(inv.Devices))
	for _, d := range inv.Devices {
		if ids[d.NetworkID] {
			devices = append(devices, d)
		}
	}
	inv.Networks = networks
	inv.Devices = devices
	inv.Templates = nil
}

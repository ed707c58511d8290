package planner

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/catalog"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
)

// The phases in this file depend on files an earlier phase archived. A
// missing prerequisite file silently skips the dependent calls; whether
// that is the right behavior is debatable, but it matches how operators
// have come to rely on partial scans completing.

// PlanApplianceLANs plans either the VLANs+ports pair or the single-LAN
// call for every appliance network. VLANs are considered enabled when the
// network's ApplianceVlansSettings file was archived, since the writer
// drops default (VLANs-off) responses.
func (p *Planner) PlanApplianceLANs(settingsRoot string, networks []entity.Network) []Call {
	var calls []Call
	for _, network := range networks {
		if !network.HasProduct(entity.ProductAppliance) {
			continue
		}
		dir := NetworkDir(network)

		operations := []string{"getNetworkApplianceSingleLan"}
		vlansFile := filepath.Join(settingsRoot, dir, "network_ApplianceVlansSettings.json")
		if _, err := os.Stat(vlansFile); err == nil {
			operations = []string{"getNetworkApplianceVlans", "getNetworkAppliancePorts"}
		}

		for _, op := range operations {
			rule, ok := p.cat.Find(op)
			if !ok {
				slog.Warn("Appliance LAN operation missing from rule table", "operation", op)
				continue
			}
			calls = append(calls, Call{
				OperationID: op,
				Path:        p.resolve(rule.Path, map[string]string{"networkId": network.ID}),
				Dir:         dir,
				FileName:    FileNameFor(op),
			})
		}
	}
	return calls
}

// PlanSSIDs plans the per-SSID calls (rules with Logic `ssids`) for every
// configured SSID of every wireless network. An SSID counts as configured
// when its name does not carry the dashboard's "Unconfigured" placeholder.
// The SSID list is read from the previously archived WirelessSsids file.
func (p *Planner) PlanSSIDs(settingsRoot string, networks []entity.Network) []Call {
	var calls []Call
	for _, network := range networks {
		if !network.HasProduct(entity.ProductWireless) {
			continue
		}
		dir := NetworkDir(network)

		data, err := os.ReadFile(filepath.Join(settingsRoot, dir, "network_WirelessSsids.json"))
		if err != nil {
			slog.Debug("No archived SSID list, skipping per-SSID settings", "network", network.ID)
			continue
		}

		for i, ssid := range gjson.GetBytes(data, "@this").Array() {
			if strings.Contains(ssid.Get("name").String(), "Unconfigured") {
				continue
			}
			number := ssid.Get("number").String()
			if number == "" {
				number = strconv.Itoa(i)
			}
			for _, rule := range p.cat.Rules {
				if rule.Logic != catalog.LogicSSIDs {
					continue
				}
				calls = append(calls, Call{
					OperationID: rule.OperationID,
					Path: p.resolve(rule.Path, map[string]string{
						"networkId": network.ID,
						"number":    number,
					}),
					Dir:      dir,
					FileName: FileNameFor(rule.OperationID) + "_ssid_" + number,
				})
			}
		}
	}
	return calls
}

// PlanSwitchProfiles plans the switch profile list call for every switch
// configuration template.
func (p *Planner) PlanSwitchProfiles(templates []entity.Template) []Call {
	rule, ok := p.cat.Find("getOrganizationConfigTemplateSwitchProfiles")
	if !ok {
		slog.Warn("Switch profile operation missing from rule table")
		return nil
	}

	var calls []Call
	for _, tpl := range templates {
		network := tpl.AsNetwork()
		if !network.HasProduct(entity.ProductSwitch) {
			continue
		}
		calls = append(calls, Call{
			OperationID: rule.OperationID,
			Path:        p.resolve(rule.Path, map[string]string{"configTemplateId": tpl.ID}),
			Dir:         NetworkDir(network),
			FileName:    FileNameFor(rule.OperationID),
		})
	}
	return calls
}

// PlanSwitchProfilePorts plans the per-profile port calls for every switch
// template whose profile list was archived by PlanSwitchProfiles' phase.
func (p *Planner) PlanSwitchProfilePorts(settingsRoot string, templates []entity.Template) []Call {
	rule, ok := p.cat.Find("getOrganizationConfigTemplateSwitchProfilePorts")
	if !ok {
		slog.Warn("Switch profile ports operation missing from rule table")
		return nil
	}

	var calls []Call
	for _, tpl := range templates {
		network := tpl.AsNetwork()
		if !network.HasProduct(entity.ProductSwitch) {
			continue
		}
		dir := NetworkDir(network)

		data, err := os.ReadFile(filepath.Join(settingsRoot, dir, "org_ConfigTemplateSwitchProfiles.json"))
		if err != nil {
			slog.Debug("No archived switch profile list, skipping ports", "template", tpl.ID)
			continue
		}

		for _, profile := range gjson.GetBytes(data, "@this").Array() {
			profileID := profile.Get("switchProfileId").String()
			if profileID == "" {
				continue
			}
			calls = append(calls, Call{
				OperationID: rule.OperationID,
				Path: p.resolve(rule.Path, map[string]string{
					"configTemplateId": tpl.ID,
					"profileId":        profileID,
				}),
				Dir:      dir,
				FileName: FileNameFor(rule.OperationID) + "_" + profileID,
			})
		}
	}
	return calls
}

// PlanBLE plans per-device Bluetooth settings calls for wireless networks
// that advertise with unique major/minor assignment, the only mode where
// device-level Bluetooth settings diverge from the network's.
func (p *Planner) PlanBLE(settingsRoot string, networks []entity.Network, devices []entity.Device) []Call {
	rule, ok := p.cat.Find("getDeviceWirelessBluetoothSettings")
	if !ok {
		slog.Warn("Device Bluetooth operation missing from rule table")
		return nil
	}

	var calls []Call
	for _, network := range networks {
		if !network.HasProduct(entity.ProductWireless) {
			continue
		}
		dir := NetworkDir(network)

		data, err := os.ReadFile(filepath.Join(settingsRoot, dir, "network_WirelessBluetoothSettings.json"))
		if err != nil {
			continue
		}
		if !gjson.GetBytes(data, "advertisingEnabled").Bool() ||
			gjson.GetBytes(data, "majorMinorAssignmentMode").String() != "Unique" {
			continue
		}

		for _, device := range devices {
			if device.NetworkID != network.ID || device.Family() != entity.ProductWireless {
				continue
			}
			calls = append(calls, Call{
				OperationID: rule.OperationID,
				Path:        p.resolve(rule.Path, map[string]string{"serial": device.Serial}),
				Dir:         dir,
				FileName:    FileNameFor(rule.OperationID) + "_" + device.Serial,
			})
		}
	}
	return calls
}

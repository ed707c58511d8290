// Package planner turns the endpoint rule table plus an entity inventory
// into the concrete list of API calls one archive run issues. Planning is
// split into phases because the later ones depend on files written by the
// earlier ones.
package planner

import (
	"net/url"
	"strings"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/catalog"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
)

// Call is one planned API invocation and the destination of its response.
type Call struct {
	// OperationID identifies the endpoint rule that produced this call.
	OperationID string

	// Path is the API path with all URI template parameters resolved.
	Path string

	// Query carries optional query parameters.
	Query url.Values

	// Dir is the destination directory relative to the settings root;
	// empty for org-level settings.
	Dir string

	// FileName is the destination file name without extension.
	FileName string

	// Paginated marks endpoints that page with perPage/Link headers.
	Paginated bool
}

// Planner builds calls for one organization from a loaded rule table.
type Planner struct {
	cat   *catalog.Catalog
	orgID string
}

// New creates a Planner for the organization.
func New(cat *catalog.Catalog, orgID string) *Planner {
	return &Planner{cat: cat, orgID: orgID}
}

// FileNameFor derives the destination file name from an operation id, e.g.
// getNetworkApplianceVlansSettings becomes network_ApplianceVlansSettings.
func FileNameFor(operationID string) string {
	if operationID == "getOrganization" {
		return "org_Organization"
	}
	r := strings.NewReplacer(
		"getOrganization", "org_",
		"getDevice", "device_",
		"getNetwork", "network_",
	)
	return r.Replace(operationID)
}

// NetworkDir is the settings subdirectory for a network or template.
func NetworkDir(n entity.Network) string {
	return "networks/" + n.ID + " - " + sanitize(n.Name)
}

// DeviceDir is the settings subdirectory for a device.
func DeviceDir(d entity.Device) string {
	return "devices/" + d.Serial + " - " + sanitize(d.Model)
}

// sanitize keeps entity names from escaping their directory.
func sanitize(name string) string {
	return strings.ReplaceAll(name, "/", "-")
}

// PlanOrg builds the organization-level calls: every getOrganization* rule
// not marked skipped or script-only. Rules declaring a perPage parameter are
// fetched with pagination.
func (p *Planner) PlanOrg() []Call {
	var calls []Call
	for _, rule := range p.cat.Rules {
		if !strings.HasPrefix(rule.OperationID, "getOrganization") {
			continue
		}
		if rule.Skipped() || rule.ScriptOnly() {
			continue
		}
		calls = append(calls, Call{
			OperationID: rule.OperationID,
			Path:        p.resolve(rule.Path, nil),
			FileName:    FileNameFor(rule.OperationID),
			Paginated:   rule.HasParameter("perPage"),
		})
	}
	return calls
}

// PlanDevices builds the device-level calls. Rules scoped `devices` apply
// to the wireless, switch and appliance families; product-scoped rules only
// to devices of that family. Devices of unknown families are skipped.
func (p *Planner) PlanDevices(devices []entity.Device) []Call {
	var calls []Call
	for _, device := range devices {
		family := device.Family()
		if family == "" {
			continue
		}
		dir := DeviceDir(device)
		for _, rule := range p.cat.Rules {
			if !strings.HasPrefix(rule.OperationID, "getDevice") {
				continue
			}
			if rule.Skipped() || rule.ScriptOnly() {
				continue
			}
			scope := rule.Scope()
			generic := scope == "devices" &&
				(family == entity.ProductWireless || family == entity.ProductSwitch || family == entity.ProductAppliance)
			if !generic && scope != family {
				continue
			}
			calls = append(calls, Call{
				OperationID: rule.OperationID,
				Path:        p.resolve(rule.Path, map[string]string{"serial": device.Serial}),
				Dir:         dir,
				FileName:    FileNameFor(rule.OperationID),
			})
		}
	}
	return calls
}

// PlanNetworks builds the network-level calls for networks and templates.
// Rules scoped `networks` apply generally unless their Logic column narrows
// them to a product type set; product-scoped rules require the network to
// include that product. The non-template and non-bound Logic values exclude
// templates and template-bound networks respectively.
//
// getNetworkWirelessRfProfiles is special-cased: template-bound networks
// fetch it with includeTemplateProfiles=true.
func (p *Planner) PlanNetworks(networks []entity.Network) []Call {
	var calls []Call
	for _, network := range networks {
		dir := NetworkDir(network)
		params := map[string]string{"networkId": network.ID}
		for _, rule := range p.cat.Rules {
			if rule.OperationID == "getNetworkWirelessRfProfiles" {
				if !network.HasProduct(entity.ProductWireless) {
					continue
				}
				call := Call{
					OperationID: rule.OperationID,
					Path:        p.resolve(rule.Path, params),
					Dir:         dir,
					FileName:    FileNameFor(rule.OperationID),
				}
				if network.IsBound() {
					call.Query = url.Values{"includeTemplateProfiles": []string{"true"}}
				}
				calls = append(calls, call)
				continue
			}

			if !strings.HasPrefix(rule.OperationID, "getNetwork") {
				continue
			}
			if rule.Skipped() || rule.ScriptOnly() || rule.Logic == catalog.LogicSSIDs {
				continue
			}
			if !networkRuleApplies(rule, network) {
				continue
			}
			calls = append(calls, Call{
				OperationID: rule.OperationID,
				Path:        p.resolve(rule.Path, params),
				Dir:         dir,
				FileName:    FileNameFor(rule.OperationID),
			})
		}
	}
	return calls
}

func networkRuleApplies(rule catalog.Rule, network entity.Network) bool {
	scope := rule.Scope()
	proceed := false
	switch {
	case scope == "networks":
		if products := rule.ProductLogic(); len(products) > 0 {
			for _, product := range products {
				if network.HasProduct(product) {
					proceed = true
					break
				}
			}
		} else {
			proceed = true
		}
	case network.HasProduct(scope):
		proceed = true
	}
	if !proceed {
		return false
	}

	// Template and bound-network exclusions.
	switch {
	case !network.IsTemplate() && !network.IsBound():
		return true
	case network.IsBound() && rule.Logic != catalog.LogicNonBound:
		return true
	case network.IsTemplate() && rule.Logic != catalog.LogicNonTemplate:
		return true
	}
	return false
}

// resolve substitutes URI template parameters. The organization id is
// always available; the rest come from params.
func (p *Planner) resolve(path string, params map[string]string) string {
	pairs := []string{"{organizationId}", p.orgID}
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(path)
}

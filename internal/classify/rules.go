package classify

import (
	"strings"

	"github.com/martinsuchenak/assetd/internal/model"
)

// Layer identifies the signal layer a rule scores in. Each layer carries a
// fixed weight; within a layer only the strongest matching rule per class
// counts, so stacking similar rules cannot exceed the layer weight.
type Layer string

const (
	LayerPorts    Layer = "ports"
	LayerHostname Layer = "hostname"
	LayerOS       Layer = "os"
	LayerBanner   Layer = "banner"
)

// layerWeights are the relative contributions of each signal layer.
var layerWeights = map[Layer]float64{
	LayerPorts:    0.40,
	LayerHostname: 0.25,
	LayerOS:       0.20,
	LayerBanner:   0.15,
}

// Rule is one independently testable classification rule. Strength scales
// the rule inside its layer and stays in (0,1].
type Rule struct {
	Name     string
	Layer    Layer
	Class    model.DeviceClass
	Strength float64
	Match    func(*Signals) bool
}

// HostnamePattern maps a hostname substring to a device class. The table
// is configuration: replace it wholesale to adapt to a site's naming
// scheme.
type HostnamePattern struct {
	Substr string
	Class  model.DeviceClass
}

// DefaultHostnamePatterns cover common corporate naming conventions.
var DefaultHostnamePatterns = []HostnamePattern{
	{"server", model.ClassServer},
	{"srv", model.ClassServer},
	{"db-", model.ClassServer},
	{"sql", model.ClassServer},
	{"ws-", model.ClassWorkstation},
	{"pc-", model.ClassWorkstation},
	{"desktop", model.ClassWorkstation},
	{"laptop", model.ClassWorkstation},
	{"nb-", model.ClassWorkstation},
	{"sw-", model.ClassNetworkDevice},
	{"switch", model.ClassNetworkDevice},
	{"rtr", model.ClassNetworkDevice},
	{"router", model.ClassNetworkDevice},
	{"fw-", model.ClassNetworkDevice},
	{"ap-", model.ClassNetworkDevice},
	{"print", model.ClassPrinter},
	{"prn", model.ClassPrinter},
	{"mfp", model.ClassPrinter},
	{"phone", model.ClassIPPhone},
	{"sip-", model.ClassIPPhone},
	{"voip", model.ClassIPPhone},
	{"esx", model.ClassHypervisor},
	{"hv-", model.ClassHypervisor},
	{"vmh", model.ClassHypervisor},
}

// defaultRules builds the standard rule set. Hostname rules are generated
// from the pattern table so sites can swap naming conventions without
// touching scoring.
func defaultRules(patterns []HostnamePattern) []Rule {
	rules := []Rule{
		// Port signature layer
		{
			Name: "windows-domain-services", Layer: LayerPorts, Class: model.ClassServer, Strength: 1.0,
			Match: func(s *Signals) bool {
				return s.Scan.HasPort(445) && s.Scan.HasAnyPort(53, 88, 389)
			},
		},
		{
			Name: "database-ports", Layer: LayerPorts, Class: model.ClassServer, Strength: 1.0,
			Match: func(s *Signals) bool {
				return s.Scan.HasAnyPort(1433, 3306, 5432, 27017, 6379)
			},
		},
		{
			Name: "linux-web-server", Layer: LayerPorts, Class: model.ClassServer, Strength: 0.9,
			Match: func(s *Signals) bool {
				return s.Scan.HasPort(22) && s.Scan.HasAnyPort(80, 443)
			},
		},
		{
			Name: "windows-rdp-host", Layer: LayerPorts, Class: model.ClassServer, Strength: 0.4,
			Match: func(s *Signals) bool {
				return s.Scan.HasPort(3389) && s.Scan.HasPort(445)
			},
		},
		{
			Name: "windows-client-ports", Layer: LayerPorts, Class: model.ClassWorkstation, Strength: 0.6,
			Match: func(s *Signals) bool {
				return s.Scan.HasAnyPort(135, 139, 445, 3389) &&
					!s.Scan.HasAnyPort(53, 88, 389, 80, 443, 1433, 3306, 5432)
			},
		},
		{
			Name: "snmp-managed-network", Layer: LayerPorts, Class: model.ClassNetworkDevice, Strength: 0.9,
			Match: func(s *Signals) bool {
				return s.Scan.HasPort(161) && s.Scan.HasAnyPort(22, 23) && !s.Scan.HasPort(445)
			},
		},
		{
			Name: "telnet-no-smb", Layer: LayerPorts, Class: model.ClassNetworkDevice, Strength: 0.5,
			Match: func(s *Signals) bool {
				return s.Scan.HasPort(23) && !s.Scan.HasPort(445)
			},
		},
		{
			Name: "printer-ports", Layer: LayerPorts, Class: model.ClassPrinter, Strength: 1.0,
			Match: func(s *Signals) bool {
				return s.Scan.HasAnyPort(515, 631, 9100)
			},
		},
		{
			Name: "sip-ports", Layer: LayerPorts, Class: model.ClassIPPhone, Strength: 1.0,
			Match: func(s *Signals) bool {
				return s.Scan.HasAnyPort(5060, 5061)
			},
		},
		{
			Name: "esxi-ports", Layer: LayerPorts, Class: model.ClassHypervisor, Strength: 1.0,
			Match: func(s *Signals) bool {
				return s.Scan.HasPort(902) && s.Scan.HasPort(443)
			},
		},

		// OS identification layer
		{
			Name: "os-windows-server", Layer: LayerOS, Class: model.ClassServer, Strength: 1.0,
			Match: func(s *Signals) bool {
				return strings.Contains(strings.ToLower(s.OSName), "windows server")
			},
		},
		{
			Name: "os-windows-client", Layer: LayerOS, Class: model.ClassWorkstation, Strength: 0.8,
			Match: func(s *Signals) bool {
				name := strings.ToLower(s.OSName)
				return s.OSFamily == model.OSWindows &&
					strings.Contains(name, "windows") &&
					!strings.Contains(name, "server")
			},
		},
		{
			Name: "os-linux-lean", Layer: LayerOS, Class: model.ClassServer, Strength: 0.5,
			Match: func(s *Signals) bool {
				return s.OSFamily == model.OSLinux
			},
		},
		{
			Name: "os-network", Layer: LayerOS, Class: model.ClassNetworkDevice, Strength: 1.0,
			Match: func(s *Signals) bool {
				return s.OSFamily == model.OSNetworkOS
			},
		},

		// Banner fingerprint layer
		{
			Name: "banner-network-vendor", Layer: LayerBanner, Class: model.ClassNetworkDevice, Strength: 1.0,
			Match: bannerContains("cisco", "juniper", "junos", "routeros", "mikrotik", "procurve", "arista", "fortigate"),
		},
		{
			Name: "banner-printer", Layer: LayerBanner, Class: model.ClassPrinter, Strength: 1.0,
			Match: bannerContains("printer", "jetdirect", "laserjet", "lexmark", "kyocera"),
		},
		{
			Name: "banner-hypervisor", Layer: LayerBanner, Class: model.ClassHypervisor, Strength: 1.0,
			Match: bannerContains("esxi", "vmware", "proxmox"),
		},
		{
			Name: "banner-voip", Layer: LayerBanner, Class: model.ClassIPPhone, Strength: 1.0,
			Match: bannerContains("asterisk", "polycom", "yealink", "grandstream"),
		},
		{
			Name: "banner-windows-server", Layer: LayerBanner, Class: model.ClassServer, Strength: 0.9,
			Match: bannerContains("windows server", "microsoft-iis"),
		},
		{
			Name: "banner-web-server", Layer: LayerBanner, Class: model.ClassServer, Strength: 0.6,
			Match: bannerContains("nginx", "apache", "openssh"),
		},
	}

	for _, p := range patterns {
		substr := strings.ToLower(p.Substr)
		rules = append(rules, Rule{
			Name:     "hostname-" + substr,
			Layer:    LayerHostname,
			Class:    p.Class,
			Strength: 1.0,
			Match: func(s *Signals) bool {
				return strings.Contains(strings.ToLower(s.Hostname), substr)
			},
		})
	}

	return rules
}

func bannerContains(needles ...string) func(*Signals) bool {
	return func(s *Signals) bool {
		for _, banner := range s.Banners {
			b := strings.ToLower(banner)
			for _, n := range needles {
				if strings.Contains(b, n) {
					return true
				}
			}
		}
		return false
	}
}

package model

import (
	"sort"
	"time"
)

// EvidenceMethod identifies one liveness signal.
type EvidenceMethod string

const (
	EvidenceICMP EvidenceMethod = "icmp"
	EvidenceTCP  EvidenceMethod = "tcp"
	EvidenceARP  EvidenceMethod = "arp"
)

// ReachabilityResult is the reconciled verdict of the prober.
// Alive is true only when ICMP or TCP succeeded; ARP is recorded as
// corroborating evidence but never sets Alive on its own.
type ReachabilityResult struct {
	Address   string           `json:"address"`
	Alive     bool             `json:"alive"`
	Evidence  []EvidenceMethod `json:"evidence,omitempty"`
	RTT       time.Duration    `json:"rtt,omitempty"`
	MAC       string           `json:"mac,omitempty"`
	Vendor    string           `json:"vendor,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// HasEvidence reports whether the given signal is present.
func (r *ReachabilityResult) HasEvidence(m EvidenceMethod) bool {
	for _, e := range r.Evidence {
		if e == m {
			return true
		}
	}
	return false
}

// ServiceInfo maps one open port to its guessed service name.
type ServiceInfo struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// PortScanResult holds the open ports of a single address.
// OpenPorts is deduplicated and sorted ascending; Services only contains
// entries for ports present in OpenPorts.
type PortScanResult struct {
	Address   string        `json:"address"`
	OpenPorts []int         `json:"open_ports,omitempty"`
	Services  []ServiceInfo `json:"services,omitempty"`
}

// HasPort reports whether the port was found open.
func (p *PortScanResult) HasPort(port int) bool {
	i := sort.SearchInts(p.OpenPorts, port)
	return i < len(p.OpenPorts) && p.OpenPorts[i] == port
}

// HasAnyPort reports whether any of the given ports was found open.
func (p *PortScanResult) HasAnyPort(ports ...int) bool {
	for _, port := range ports {
		if p.HasPort(port) {
			return true
		}
	}
	return false
}

// ServiceFor returns the guessed service name for a port, or "".
func (p *PortScanResult) ServiceFor(port int) string {
	for _, s := range p.Services {
		if s.Port == port {
			return s.Service
		}
	}
	return ""
}

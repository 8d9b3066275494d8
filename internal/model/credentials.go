package model

import (
	"fmt"
	"net"
	"sort"
)

// Credentials holds the secrets one or more collectors may use against a
// target. Zero-value fields mean "not provided"; collectors that require a
// missing secret report auth_failed without touching the network.
type Credentials struct {
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	Domain        string `json:"domain,omitempty"`
	SSHPrivateKey string `json:"ssh_private_key,omitempty"`
	SNMPCommunity string `json:"snmp_community,omitempty"`
}

// HasLogin reports whether username/password style auth is possible.
func (c *Credentials) HasLogin() bool {
	return c != nil && c.Username != "" && (c.Password != "" || c.SSHPrivateKey != "")
}

type subnetCredentials struct {
	cidr  *net.IPNet
	creds Credentials
}

// CredentialSet resolves credentials by scope. Most specific scope wins:
// exact host, then the longest matching subnet, then the global entry.
// The set is read-only shared configuration during a run; build it fully
// before scheduling starts.
type CredentialSet struct {
	global  *Credentials
	subnets []subnetCredentials
	hosts   map[string]Credentials
}

// NewCredentialSet returns an empty credential set.
func NewCredentialSet() *CredentialSet {
	return &CredentialSet{hosts: make(map[string]Credentials)}
}

// Add registers credentials under a scope. Scope is "" or "global" for the
// run-wide default, a CIDR like "10.0.0.0/24" for a subnet, or a single
// host address.
func (cs *CredentialSet) Add(scope string, creds Credentials) error {
	switch scope {
	case "", "global":
		cs.global = &creds
		return nil
	}

	if _, cidr, err := net.ParseCIDR(scope); err == nil {
		cs.subnets = append(cs.subnets, subnetCredentials{cidr: cidr, creds: creds})
		// Longest prefix first so lookups can take the first match
		sort.SliceStable(cs.subnets, func(i, j int) bool {
			oi, _ := cs.subnets[i].cidr.Mask.Size()
			oj, _ := cs.subnets[j].cidr.Mask.Size()
			return oi > oj
		})
		return nil
	}

	if net.ParseIP(scope) == nil && !validHostname(scope) {
		return fmt.Errorf("invalid credential scope %q: not global, CIDR, or host", scope)
	}

	cs.hosts[scope] = creds
	return nil
}

// For resolves the credentials for an address, most specific scope first.
// Returns nil when no scope matches.
func (cs *CredentialSet) For(address string) *Credentials {
	if cs == nil {
		return nil
	}

	if creds, ok := cs.hosts[address]; ok {
		return &creds
	}

	if ip := net.ParseIP(address); ip != nil {
		for _, sc := range cs.subnets {
			if sc.cidr.Contains(ip) {
				creds := sc.creds
				return &creds
			}
		}
	}

	if cs.global != nil {
		creds := *cs.global
		return &creds
	}

	return nil
}

func validHostname(s string) bool {
	if len(s) == 0 || len(s) > 253 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

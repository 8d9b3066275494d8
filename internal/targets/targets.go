// Package targets expands scan target specifications into concrete host
// addresses.
package targets

import (
	"fmt"
	"net"
	"strings"
)

// Expand turns a list of target specs into individual host addresses. A
// spec is either a single host (IP or name) or an IPv4 CIDR. CIDR ranges
// of /30 and wider have their network and broadcast addresses removed.
// Entries matching an exclusion (host or CIDR) are dropped. The result
// preserves spec order and is deduplicated.
func Expand(specs, exclusions []string) ([]string, error) {
	seen := make(map[string]bool)
	var hosts []string

	add := func(host string) {
		if seen[host] || isExcluded(host, exclusions) {
			return
		}
		seen[host] = true
		hosts = append(hosts, host)
	}

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if !strings.Contains(spec, "/") {
			add(spec)
			continue
		}

		ips, err := expandCIDR(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", spec, err)
		}
		for _, ip := range ips {
			add(ip)
		}
	}

	if len(hosts) == 0 {
		return nil, fmt.Errorf("no target addresses after expansion")
	}
	return hosts, nil
}

// ParseSpecs splits a comma separated target string.
func ParseSpecs(s string) []string {
	var specs []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			specs = append(specs, part)
		}
	}
	return specs
}

func expandCIDR(cidr string) ([]string, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	var ips []string
	for ip := ipNet.IP.Mask(ipNet.Mask); ipNet.Contains(ip); inc(ip) {
		// Skip network and broadcast addresses for /30 and wider
		ones, bits := ipNet.Mask.Size()
		if bits == 32 && ones <= 30 {
			if ip.Equal(ipNet.IP) {
				continue
			}
			broadcast := make(net.IP, len(ipNet.IP))
			copy(broadcast, ipNet.IP)
			for i := range ipNet.Mask {
				broadcast[i] |= ^ipNet.Mask[i]
			}
			if ip.Equal(broadcast) {
				continue
			}
		}
		ips = append(ips, ip.String())
	}
	return ips, nil
}

func isExcluded(host string, exclusions []string) bool {
	for _, excl := range exclusions {
		if excl == host {
			return true
		}
		if _, exclNet, err := net.ParseCIDR(excl); err == nil {
			if ip := net.ParseIP(host); ip != nil && exclNet.Contains(ip) {
				return true
			}
		}
	}
	return false
}

// inc increments an IP address
func inc(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

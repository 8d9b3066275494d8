package probe

import (
	"bufio"
	"net"
	"os"
	"strings"
)

const procNetARP = "/proc/net/arp"

// ARPResolver looks up MAC addresses in the kernel ARP table. The lookup
// is only meaningful for addresses on a locally attached subnet; for
// routed addresses the table entry would be the gateway, so callers must
// gate on IsLocal first.
type ARPResolver struct {
	tablePath string
}

// NewARPResolver creates an ARP resolver backed by /proc/net/arp.
func NewARPResolver() *ARPResolver {
	return &ARPResolver{tablePath: procNetARP}
}

// IsLocal reports whether the address falls inside a subnet of one of the
// host's own interfaces.
func (a *ARPResolver) IsLocal(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.Contains(ip) {
				return true
			}
		}
	}
	return false
}

// Lookup returns the MAC address and OUI vendor for an IP from the kernel
// ARP table. ok is false when the entry is absent or incomplete.
func (a *ARPResolver) Lookup(address string) (mac, vendor string, ok bool) {
	file, err := os.Open(a.tablePath)
	if err != nil {
		return "", "", false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan() // header line

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// IP address, HW type, Flags, HW address, Mask, Device
		if len(fields) < 4 || fields[0] != address {
			continue
		}
		mac = strings.ToUpper(fields[3])
		if mac == "" || mac == "00:00:00:00:00:00" {
			return "", "", false
		}
		return mac, ouiVendor(mac), true
	}
	return "", "", false
}

// ouiVendor identifies the hardware vendor from the MAC address OUI.
func ouiVendor(mac string) string {
	if len(mac) < 8 {
		return ""
	}
	oui := mac[:8]

	vendors := map[string]string{
		"00:50:56": "VMware",
		"00:0C:29": "VMware",
		"08:00:27": "VirtualBox",
		"00:15:5D": "Hyper-V",
		"00:1B:21": "Intel",
		"00:E0:4C": "Realtek",
		"BC:5F:F4": "Intel",
		"F4:8E:38": "Intel",
	}

	if vendor, ok := vendors[oui]; ok {
		return vendor
	}
	return "Unknown"
}

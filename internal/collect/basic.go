package collect

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/martinsuchenak/assetd/internal/model"
)

// reverseDNSTimeout bounds the only network I/O the fallback collector is
// allowed to perform.
const reverseDNSTimeout = 2 * time.Second

// ResolveFunc performs a reverse DNS lookup. Injectable for tests.
type ResolveFunc func(ctx context.Context, address string) ([]string, error)

// BasicCollector is the terminal fallback. It never fails: it repackages
// what the pipeline already knows (reachability evidence, open ports,
// service guesses) into a minimal attribute set, adding only a reverse DNS
// lookup. Guaranteed minimum fields: address, os_family guess, open_ports,
// services, hostname-or-address, collected_at.
type BasicCollector struct {
	resolve ResolveFunc
}

// NewBasicCollector creates the fallback collector.
func NewBasicCollector() *BasicCollector {
	return &BasicCollector{
		resolve: func(ctx context.Context, address string) ([]string, error) {
			return net.DefaultResolver.LookupAddr(ctx, address)
		},
	}
}

func (c *BasicCollector) Method() model.CollectionMethod {
	return model.MethodBasicFallback
}

func (c *BasicCollector) Collect(ctx context.Context, req *Request) model.CollectionAttempt {
	attempt := begin(c.Method())

	fields := map[string]string{
		"address":      req.Address,
		"os_family":    string(OSFamilyFromPorts(&req.Scan)),
		"open_ports":   joinPorts(req.Scan.OpenPorts),
		"services":     joinServices(req.Scan.Services),
		"collected_at": time.Now().UTC().Format(time.RFC3339),
	}

	if len(req.Reachability.Evidence) > 0 {
		evidence := make([]string, 0, len(req.Reachability.Evidence))
		for _, e := range req.Reachability.Evidence {
			evidence = append(evidence, string(e))
		}
		fields["evidence"] = strings.Join(evidence, ",")
	}
	setIfPresent(fields, "mac_address", req.Reachability.MAC)
	setIfPresent(fields, "vendor", req.Reachability.Vendor)

	// Hostname or address, never empty. The lookup is skipped entirely
	// once the pipeline is cancelled.
	fields["hostname"] = req.Address
	if ctx.Err() == nil {
		dnsCtx, cancel := context.WithTimeout(ctx, reverseDNSTimeout)
		if names, err := c.resolve(dnsCtx, req.Address); err == nil && len(names) > 0 {
			fields["hostname"] = strings.TrimSuffix(names[0], ".")
		}
		cancel()
	}

	return finalize(attempt, model.StatusSuccess, fields, nil)
}

// OSFamilyFromPorts guesses the OS family from the port signature alone.
// Shared with the classifier's port layer.
func OSFamilyFromPorts(scan *model.PortScanResult) model.OSFamily {
	windows := scan.HasAnyPort(135, 139, 445, 3389)
	unix := scan.HasAnyPort(22, 111, 2049)
	network := scan.HasAnyPort(161, 23) && !windows

	switch {
	case windows && !unix:
		return model.OSWindows
	case unix && !windows:
		return model.OSLinux
	case network:
		return model.OSNetworkOS
	}
	return model.OSUnknown
}

func joinPorts(ports []int) string {
	if len(ports) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

func joinServices(services []model.ServiceInfo) string {
	if len(services) == 0 {
		return ""
	}
	parts := make([]string, 0, len(services))
	for _, s := range services {
		parts = append(parts, strconv.Itoa(s.Port)+"/"+s.Service)
	}
	return strings.Join(parts, ",")
}

// Package portscan enumerates open TCP ports on a reachable address and
// maps well-known ports to candidate service names.
package portscan

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/martinsuchenak/assetd/internal/model"
)

// DialFunc dials one port. Injectable for tests.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Scanner performs concurrent TCP connect scans against a single address.
// Concurrency is bounded per address so a busy sweep does not exhaust the
// local socket table.
type Scanner struct {
	dial        DialFunc
	timeout     time.Duration
	concurrency int
}

// Options configures a Scanner.
type Options struct {
	Dial           DialFunc      // Defaults to a plain TCP dialer
	TimeoutPerPort time.Duration // Defaults to 500ms
	Concurrency    int           // Defaults to 50
}

// New creates a port scanner.
func New(opts Options) *Scanner {
	s := &Scanner{
		dial:        opts.Dial,
		timeout:     opts.TimeoutPerPort,
		concurrency: opts.Concurrency,
	}
	if s.dial == nil {
		dialer := &net.Dialer{}
		s.dial = dialer.DialContext
	}
	if s.timeout <= 0 {
		s.timeout = 500 * time.Millisecond
	}
	if s.concurrency <= 0 {
		s.concurrency = 50
	}
	return s
}

// Scan probes the given ports and returns the open set. A closed, filtered
// or timed-out port is simply absent from the result, not an error. Open
// ports are deduplicated and sorted; service guesses are only added for
// ports that are open and known.
func (s *Scanner) Scan(ctx context.Context, address string, ports []int) model.PortScanResult {
	result := model.PortScanResult{Address: address}

	seen := make(map[int]bool, len(ports))
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		open []int
	)
	sem := make(chan struct{}, s.concurrency)

	for _, port := range ports {
		if seen[port] {
			continue
		}
		seen[port] = true

		select {
		case <-ctx.Done():
			// Report what completed so far; cancellation is not an error
			// at this layer.
			wg.Wait()
			return s.finish(result, open)
		default:
		}

		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if s.probePort(ctx, address, port) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
		}(port)
	}

	wg.Wait()
	return s.finish(result, open)
}

func (s *Scanner) finish(result model.PortScanResult, open []int) model.PortScanResult {
	sort.Ints(open)
	result.OpenPorts = open
	for _, port := range open {
		if name, ok := wellKnownServices[port]; ok {
			result.Services = append(result.Services, model.ServiceInfo{Port: port, Service: name})
		}
	}
	return result
}

func (s *Scanner) probePort(ctx context.Context, address string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// wellKnownServices is the static port to service table. Ports missing
// here stay in OpenPorts without a service guess.
var wellKnownServices = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios",
	143:   "imap",
	161:   "snmp",
	443:   "https",
	445:   "smb",
	515:   "lpd",
	631:   "ipp",
	902:   "vmware-auth",
	993:   "imaps",
	995:   "pop3s",
	1723:  "pptp",
	3306:  "mysql",
	3389:  "rdp",
	5060:  "sip",
	5061:  "sips",
	5432:  "postgresql",
	5900:  "vnc",
	5985:  "winrm",
	6379:  "redis",
	8080:  "http-proxy",
	9100:  "jetdirect",
	27017: "mongodb",
}

// ServiceName returns the well-known service for a port, or "".
func ServiceName(port int) string {
	return wellKnownServices[port]
}

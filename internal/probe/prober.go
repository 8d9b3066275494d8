// Package probe determines liveness of a target address by combining
// independent signals (ICMP echo, TCP connect, ARP table) into a single
// reachability verdict.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/martinsuchenak/assetd/internal/log"
	"github.com/martinsuchenak/assetd/internal/model"
)

type icmpPinger interface {
	Ping(ctx context.Context, address string, timeout time.Duration) (bool, time.Duration)
}

type tcpProber interface {
	Probe(ctx context.Context, address string, timeout time.Duration) (bool, int)
}

type arpResolver interface {
	IsLocal(address string) bool
	Lookup(address string) (mac, vendor string, ok bool)
}

// Options configures a Prober.
type Options struct {
	Privileged    bool          // Raw ICMP sockets available
	MethodTimeout time.Duration // Timeout for each individual signal
	TCPPorts      []int         // Ports for the TCP-connect probe
}

// Prober reconciles multiple liveness signals into one verdict.
//
// A device is alive iff the ICMP echo or the TCP-connect probe succeeded.
// An ARP entry corroborates the verdict (and contributes the MAC address)
// but never establishes liveness alone: a stale table entry says nothing
// about a routed or firewalled host.
type Prober struct {
	icmp icmpPinger
	tcp  tcpProber
	arp  arpResolver

	methodTimeout time.Duration
}

// New creates a prober with real ICMP/TCP/ARP backends.
func New(opts Options) *Prober {
	if opts.MethodTimeout <= 0 {
		opts.MethodTimeout = 2 * time.Second
	}
	return &Prober{
		icmp:          NewICMPPinger(opts.Privileged),
		tcp:           NewTCPProber(opts.TCPPorts),
		arp:           NewARPResolver(),
		methodTimeout: opts.MethodTimeout,
	}
}

// Probe checks the address with every signal and returns the reconciled
// result. The outer timeout bounds the whole probe; each signal also runs
// under its own method timeout. Sub-method failures (including panics in a
// backend) are treated as "signal absent", never propagated.
func (p *Prober) Probe(ctx context.Context, address string, timeout time.Duration) model.ReachabilityResult {
	result := model.ReachabilityResult{
		Address:   address,
		CheckedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		icmpAlive bool
		tcpAlive  bool
		rtt       time.Duration
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer failClosed(address, "icmp")
		alive, d := p.icmp.Ping(ctx, address, p.methodTimeout)
		mu.Lock()
		icmpAlive, rtt = alive, d
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		defer failClosed(address, "tcp")
		alive, _ := p.tcp.Probe(ctx, address, p.methodTimeout)
		mu.Lock()
		tcpAlive = alive
		mu.Unlock()
	}()
	wg.Wait()

	if icmpAlive {
		result.Evidence = append(result.Evidence, model.EvidenceICMP)
		result.RTT = rtt
	}
	if tcpAlive {
		result.Evidence = append(result.Evidence, model.EvidenceTCP)
	}

	// ARP is consulted last so a fresh ICMP/TCP exchange has had a chance
	// to populate the kernel table.
	if p.arp.IsLocal(address) {
		func() {
			defer failClosed(address, "arp")
			if mac, vendor, ok := p.arp.Lookup(address); ok {
				result.Evidence = append(result.Evidence, model.EvidenceARP)
				result.MAC = mac
				result.Vendor = vendor
			}
		}()
	}

	result.Alive = icmpAlive || tcpAlive
	return result
}

// failClosed converts a panicking probe backend into a missing signal.
func failClosed(address, method string) {
	if r := recover(); r != nil {
		log.Warn("Probe method panicked", "address", address, "method", method, "panic", r)
	}
}

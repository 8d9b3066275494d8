package probe

import (
	"context"
	"testing"
	"time"

	"github.com/martinsuchenak/assetd/internal/model"
)

type fakePinger struct {
	alive bool
	rtt   time.Duration
	panic bool
}

func (f *fakePinger) Ping(ctx context.Context, address string, timeout time.Duration) (bool, time.Duration) {
	if f.panic {
		panic("icmp backend blew up")
	}
	return f.alive, f.rtt
}

type fakeTCP struct {
	alive bool
	panic bool
}

func (f *fakeTCP) Probe(ctx context.Context, address string, timeout time.Duration) (bool, int) {
	if f.panic {
		panic("tcp backend blew up")
	}
	return f.alive, 0
}

type fakeARP struct {
	local  bool
	mac    string
	vendor string
}

func (f *fakeARP) IsLocal(address string) bool { return f.local }

func (f *fakeARP) Lookup(address string) (string, string, bool) {
	return f.mac, f.vendor, f.mac != ""
}

func newTestProber(icmp *fakePinger, tcp *fakeTCP, arp *fakeARP) *Prober {
	return &Prober{
		icmp:          icmp,
		tcp:           tcp,
		arp:           arp,
		methodTimeout: time.Second,
	}
}

func TestProbeTCPOnlyIsAlive(t *testing.T) {
	p := newTestProber(&fakePinger{}, &fakeTCP{alive: true}, &fakeARP{})

	result := p.Probe(context.Background(), "10.0.0.5", 2*time.Second)
	if !result.Alive {
		t.Error("TCP-only evidence should mark the device alive")
	}
	if !result.HasEvidence(model.EvidenceTCP) {
		t.Error("Expected TCP evidence")
	}
	if result.HasEvidence(model.EvidenceICMP) {
		t.Error("Did not expect ICMP evidence")
	}
}

func TestProbeICMPCarriesRTT(t *testing.T) {
	p := newTestProber(&fakePinger{alive: true, rtt: 12 * time.Millisecond}, &fakeTCP{}, &fakeARP{})

	result := p.Probe(context.Background(), "10.0.0.5", 2*time.Second)
	if !result.Alive {
		t.Error("ICMP evidence should mark the device alive")
	}
	if result.RTT != 12*time.Millisecond {
		t.Errorf("RTT = %v, want 12ms", result.RTT)
	}
}

func TestProbeARPNeverAlone(t *testing.T) {
	p := newTestProber(&fakePinger{}, &fakeTCP{}, &fakeARP{local: true, mac: "aa:bb:cc:dd:ee:ff", vendor: "TestVendor"})

	result := p.Probe(context.Background(), "192.168.1.10", 2*time.Second)
	if result.Alive {
		t.Error("A stale ARP entry must not establish liveness on its own")
	}
	if !result.HasEvidence(model.EvidenceARP) {
		t.Error("ARP evidence should still be recorded")
	}
	if result.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MAC = %s, want aa:bb:cc:dd:ee:ff", result.MAC)
	}
	if result.Vendor != "TestVendor" {
		t.Errorf("Vendor = %s, want TestVendor", result.Vendor)
	}
}

func TestProbeARPSkippedForRemoteAddress(t *testing.T) {
	p := newTestProber(&fakePinger{alive: true}, &fakeTCP{}, &fakeARP{local: false, mac: "aa:bb:cc:dd:ee:ff"})

	result := p.Probe(context.Background(), "8.8.8.8", 2*time.Second)
	if result.HasEvidence(model.EvidenceARP) {
		t.Error("ARP must not be consulted for routed addresses")
	}
}

func TestProbeFailsClosedOnPanic(t *testing.T) {
	p := newTestProber(&fakePinger{panic: true}, &fakeTCP{alive: true, panic: false}, &fakeARP{})

	result := p.Probe(context.Background(), "10.0.0.5", 2*time.Second)
	if !result.Alive {
		t.Error("A panicking signal should be treated as absent, not kill the probe")
	}

	p = newTestProber(&fakePinger{panic: true}, &fakeTCP{panic: true}, &fakeARP{})
	result = p.Probe(context.Background(), "10.0.0.5", 2*time.Second)
	if result.Alive {
		t.Error("All signals panicking should yield not-alive")
	}
}

func TestProbeDeadDevice(t *testing.T) {
	p := newTestProber(&fakePinger{}, &fakeTCP{}, &fakeARP{})

	result := p.Probe(context.Background(), "10.0.0.99", 2*time.Second)
	if result.Alive {
		t.Error("No evidence should mean not alive")
	}
	if len(result.Evidence) != 0 {
		t.Errorf("Expected empty evidence, got %v", result.Evidence)
	}
	if result.CheckedAt.IsZero() {
		t.Error("CheckedAt should be stamped")
	}
}

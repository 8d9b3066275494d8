package probe

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"
)

// DefaultProbePorts are dialed by the TCP reachability probe. The list is
// deliberately short: a single accepted connection is enough evidence.
var DefaultProbePorts = []int{80, 443, 22, 135, 445, 3389}

// TCPProber checks liveness by attempting TCP connections against a short
// list of commonly open ports.
type TCPProber struct {
	ports []int
}

// NewTCPProber creates a TCP prober. With an empty port list the default
// common-port set is used.
func NewTCPProber(ports []int) *TCPProber {
	if len(ports) == 0 {
		ports = DefaultProbePorts
	}
	return &TCPProber{ports: ports}
}

// Probe dials the candidate ports concurrently and returns success as soon
// as any connection is accepted, along with the port that answered.
func (t *TCPProber) Probe(ctx context.Context, address string, timeout time.Duration) (bool, int) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type hit struct{ port int }
	hits := make(chan hit, len(t.ports))
	var wg sync.WaitGroup

	for _, port := range t.ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			dialer := &net.Dialer{}
			conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
			if err != nil {
				return
			}
			conn.Close()
			hits <- hit{port: port}
		}(port)
	}

	go func() {
		wg.Wait()
		close(hits)
	}()

	if h, ok := <-hits; ok {
		cancel() // abandon the remaining dials
		return true, h.port
	}
	return false, 0
}

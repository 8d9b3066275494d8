package probe

import (
	"context"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const icmpPayload = "assetd-ping"

// ICMPPinger performs ICMP echo checks. In privileged mode it uses a raw
// socket; otherwise it falls back to an unprivileged datagram socket
// (available on Linux with ping_group_range configured).
type ICMPPinger struct {
	privileged bool
}

// NewICMPPinger creates a new ICMP pinger.
func NewICMPPinger(privileged bool) *ICMPPinger {
	return &ICMPPinger{privileged: privileged}
}

// Ping checks if a host answers an ICMP echo request within the timeout.
// Only a parsed echo reply from the target counts as success; garbled or
// unrelated ICMP traffic is skipped, and every failure path returns false.
func (p *ICMPPinger) Ping(ctx context.Context, address string, timeout time.Duration) (bool, time.Duration) {
	dst, err := net.ResolveIPAddr("ip4", address)
	if err != nil {
		return false, 0
	}

	network, listenAddr := "ip4:icmp", "0.0.0.0"
	if !p.privileged {
		network, listenAddr = "udp4", ""
	}

	conn, err := icmp.ListenPacket(network, listenAddr)
	if err != nil {
		return false, 0
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	message := icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  1,
			Data: []byte(icmpPayload),
		},
	}

	data, err := message.Marshal(nil)
	if err != nil {
		return false, 0
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return false, 0
	}

	var target net.Addr = dst
	if !p.privileged {
		target = &net.UDPAddr{IP: dst.IP}
	}

	start := time.Now()
	if _, err := conn.WriteTo(data, target); err != nil {
		return false, 0
	}

	// Read until we see our own echo reply or the deadline passes. The raw
	// socket delivers every ICMP packet on the host, not just ours.
	reply := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			return false, 0
		}

		rm, err := icmp.ParseMessage(1, reply[:n])
		if err != nil {
			continue
		}
		if rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || string(echo.Data) != icmpPayload {
			continue
		}
		// The kernel rewrites the echo ID on datagram sockets, so the ID
		// check only holds for raw sockets.
		if p.privileged && echo.ID != id {
			continue
		}
		if !replyFrom(peer, dst.IP) {
			continue
		}

		return true, time.Since(start)
	}
}

func replyFrom(peer net.Addr, want net.IP) bool {
	switch a := peer.(type) {
	case *net.IPAddr:
		return a.IP.Equal(want)
	case *net.UDPAddr:
		return a.IP.Equal(want)
	}
	return false
}

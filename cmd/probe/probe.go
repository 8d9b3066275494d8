// Package probe implements single-host diagnostic commands for checking
// reachability and open ports without running a full sweep.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/assetd/internal/config"
	"github.com/martinsuchenak/assetd/internal/portscan"
	"github.com/martinsuchenak/assetd/internal/probe"
)

// Commands returns the diagnostic command group.
func Commands() []*cli.Command {
	return []*cli.Command{
		CheckCommand(),
		PortScanCommand(),
	}
}

// CheckCommand probes a single host and reports each liveness signal.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:        "check",
		Usage:       "Check reachability of a single host",
		Description: "Probe a host with ICMP, TCP connect and the ARP table and report the verdict",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Usage:    "Host to probe (e.g. 192.168.1.1)",
				Required: true,
			},
			&cli.IntFlag{
				Name:         "timeout",
				Usage:        "Probe timeout in seconds",
				DefaultValue: 5,
			},
			&cli.BoolFlag{
				Name:         "privileged",
				Usage:        "Use raw ICMP sockets (requires CAP_NET_RAW or root)",
				DefaultValue: false,
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			host := cmd.GetString("host")
			timeout := time.Duration(cmd.GetInt("timeout")) * time.Second

			fmt.Println("=== Reachability Check ===")
			fmt.Printf("Host: %s\n", host)
			fmt.Printf("Timeout: %v\n\n", timeout)

			p := probe.New(probe.Options{Privileged: cmd.GetBool("privileged")})
			result := p.Probe(ctx, host, timeout)

			if result.Alive {
				fmt.Printf("Alive: yes (evidence: %v)\n", result.Evidence)
			} else {
				fmt.Println("Alive: no")
			}
			if result.RTT > 0 {
				fmt.Printf("RTT: %v\n", result.RTT)
			}
			if result.MAC != "" {
				fmt.Printf("MAC: %s", result.MAC)
				if result.Vendor != "" {
					fmt.Printf(" (%s)", result.Vendor)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

// PortScanCommand scans a single host's TCP ports.
func PortScanCommand() *cli.Command {
	return &cli.Command{
		Name:        "port-scan",
		Usage:       "Scan TCP ports on a single host",
		Description: "Run the concurrent TCP connect scan against one host and print open ports with service guesses",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Usage:    "Host to scan",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "ports",
				Usage: "Comma separated ports to scan (default: common ports)",
			},
			&cli.IntFlag{
				Name:         "concurrency",
				Usage:        "Concurrent port probes",
				DefaultValue: 50,
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			host := cmd.GetString("host")

			ports := config.DefaultPortScanList
			if v := cmd.GetString("ports"); v != "" {
				parsed, err := config.ParsePortList(v)
				if err != nil {
					return fmt.Errorf("invalid --ports: %w", err)
				}
				ports = parsed
			}

			fmt.Println("=== Port Scan ===")
			fmt.Printf("Host: %s\n", host)
			fmt.Printf("Ports: %d\n\n", len(ports))

			s := portscan.New(portscan.Options{Concurrency: cmd.GetInt("concurrency")})
			start := time.Now()
			result := s.Scan(ctx, host, ports)

			fmt.Printf("Scan finished in %v\n", time.Since(start).Truncate(time.Millisecond))
			if len(result.OpenPorts) == 0 {
				fmt.Println("No open ports found.")
				return nil
			}

			fmt.Printf("Open ports: %d\n\n", len(result.OpenPorts))
			for _, port := range result.OpenPorts {
				service := result.ServiceFor(port)
				if service == "" {
					service = "unknown"
				}
				fmt.Printf("  [+] %d: %s\n", port, service)
			}
			return nil
		},
	}
}

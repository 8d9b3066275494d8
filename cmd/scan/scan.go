// Package scan implements the sweep commands: expand targets, run the
// discovery engine across them and deliver records to a sink.
package scan

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"
	"golang.org/x/term"

	"github.com/martinsuchenak/assetd/internal/classify"
	"github.com/martinsuchenak/assetd/internal/collect"
	"github.com/martinsuchenak/assetd/internal/config"
	"github.com/martinsuchenak/assetd/internal/log"
	"github.com/martinsuchenak/assetd/internal/model"
	"github.com/martinsuchenak/assetd/internal/orchestrator"
	"github.com/martinsuchenak/assetd/internal/portscan"
	"github.com/martinsuchenak/assetd/internal/probe"
	"github.com/martinsuchenak/assetd/internal/storage"
	"github.com/martinsuchenak/assetd/internal/targets"
	"github.com/martinsuchenak/assetd/internal/worker"
	"github.com/martinsuchenak/assetd/pkg/discovery"
)

// Commands returns the scan command group.
func Commands() []*cli.Command {
	return []*cli.Command{
		RunCommand(),
	}
}

// RunCommand performs a discovery sweep, once or on a schedule.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:        "run",
		Usage:       "Run a discovery sweep",
		Description: "Probe, scan, collect and classify every target address, storing one record per device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "targets",
				Usage:    "Comma separated hosts and/or CIDR ranges (e.g. 10.0.0.0/24,192.168.1.5)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "exclude",
				Usage: "Comma separated hosts and/or CIDR ranges to skip",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for the result database",
				EnvVars: []string{"ASSETD_DATA_DIR"},
			},
			&cli.BoolFlag{
				Name:         "no-db",
				Usage:        "Print records instead of storing them",
				DefaultValue: false,
			},
			&cli.StringFlag{
				Name:    "username",
				Usage:   "Username for WinRM and SSH collection",
				EnvVars: []string{"ASSETD_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Password for WinRM and SSH collection",
				EnvVars: []string{"ASSETD_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:         "ask-pass",
				Usage:        "Prompt for the password instead of taking it from a flag",
				DefaultValue: false,
			},
			&cli.StringFlag{
				Name:  "domain",
				Usage: "Windows domain for WinRM authentication",
			},
			&cli.StringFlag{
				Name:  "ssh-key",
				Usage: "Path to an SSH private key file",
			},
			&cli.StringFlag{
				Name:    "snmp-community",
				Usage:   "SNMP v2c community string (enables the SNMP collector)",
				EnvVars: []string{"ASSETD_SNMP_COMMUNITY"},
			},
			&cli.StringFlag{
				Name:         "credential-scope",
				Usage:        "Scope the credentials apply to: global, a CIDR or a single host",
				DefaultValue: "global",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent device pipelines",
			},
			&cli.IntFlag{
				Name:  "port-concurrency",
				Usage: "Concurrent port probes per device",
			},
			&cli.StringFlag{
				Name:  "ports",
				Usage: "Comma separated TCP ports to scan (default: common ports)",
			},
			&cli.StringFlag{
				Name:  "device-timeout",
				Usage: "Deadline per device pipeline (e.g. 90s, 2m)",
			},
			&cli.StringFlag{
				Name:  "method-timeout",
				Usage: "Deadline per collector invocation (e.g. 15s)",
			},
			&cli.StringFlag{
				Name:  "global-timeout",
				Usage: "Deadline for the whole sweep (e.g. 30m)",
			},
			&cli.BoolFlag{
				Name:         "privileged",
				Usage:        "Use raw ICMP sockets (requires CAP_NET_RAW or root)",
				DefaultValue: false,
			},
			&cli.StringFlag{
				Name:  "every",
				Usage: "Run recurring sweeps on a cron schedule (e.g. '@every 1h', '0 2 * * *')",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			hosts, err := targets.Expand(
				targets.ParseSpecs(cmd.GetString("targets")),
				targets.ParseSpecs(cmd.GetString("exclude")))
			if err != nil {
				return err
			}

			creds, err := loadCredentials(cmd)
			if err != nil {
				return err
			}

			sink, closeSink, err := openSink(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeSink()

			pipeline := buildPipeline(cfg, creds, cmd.GetBool("privileged"))

			// SIGINT and SIGTERM cancel the sweep context; in-flight
			// pipelines finalize partial records before the run returns.
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				<-sigChan
				log.Info("Interrupt received, finishing in-flight devices")
				cancel()
			}()

			sweep := func(ctx context.Context) error {
				sched := worker.NewScheduler(pipeline, sink, worker.Options{
					MaxConcurrency:   cfg.MaxConcurrency,
					PerDeviceTimeout: cfg.PerDeviceTimeout,
					GlobalTimeout:    cfg.GlobalTimeout,
				})
				if err := sched.Run(ctx, hosts); err != nil {
					return err
				}
				printSummary(sched.Progress())
				return nil
			}

			if schedule := cmd.GetString("every"); schedule != "" {
				sweeper := worker.NewSweeper()
				if _, err := sweeper.Schedule(schedule, func(ctx context.Context) {
					if err := sweep(ctx); err != nil {
						log.Error("Sweep failed", "error", err)
					}
				}); err != nil {
					return fmt.Errorf("invalid schedule %q: %w", schedule, err)
				}
				sweeper.Start()
				log.Info("Recurring sweeps scheduled", "schedule", schedule, "targets", len(hosts))
				<-runCtx.Done()
				sweeper.Stop()
				return nil
			}

			return sweep(runCtx)
		},
	}
}

// loadConfig merges the command flags over environment and defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	opts := &config.Config{
		DataDir:             cmd.GetString("data-dir"),
		MaxConcurrency:      cmd.GetInt("concurrency"),
		PortScanConcurrency: cmd.GetInt("port-concurrency"),
	}

	if v := cmd.GetString("ports"); v != "" {
		ports, err := config.ParsePortList(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --ports: %w", err)
		}
		opts.PortScanList = ports
	}
	if err := parseDurationFlag(cmd, "device-timeout", &opts.PerDeviceTimeout); err != nil {
		return nil, err
	}
	if err := parseDurationFlag(cmd, "method-timeout", &opts.PerMethodTimeout); err != nil {
		return nil, err
	}
	if err := parseDurationFlag(cmd, "global-timeout", &opts.GlobalTimeout); err != nil {
		return nil, err
	}

	return config.Load(opts), nil
}

func parseDurationFlag(cmd *cli.Command, name string, dst *time.Duration) error {
	v := cmd.GetString(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid --%s: %w", name, err)
	}
	*dst = d
	return nil
}

// loadCredentials builds the credential set from the command flags. An
// empty set is valid: collection then relies on SNMP-less, loginless
// methods and the basic fallback.
func loadCredentials(cmd *cli.Command) (*model.CredentialSet, error) {
	creds := model.Credentials{
		Username:      cmd.GetString("username"),
		Password:      cmd.GetString("password"),
		Domain:        cmd.GetString("domain"),
		SNMPCommunity: cmd.GetString("snmp-community"),
	}

	if cmd.GetBool("ask-pass") {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		creds.Password = string(pw)
	}

	if keyPath := cmd.GetString("ssh-key"); keyPath != "" {
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading SSH key: %w", err)
		}
		creds.SSHPrivateKey = string(key)
	}

	set := model.NewCredentialSet()
	if creds.HasLogin() || creds.SNMPCommunity != "" || creds.SSHPrivateKey != "" {
		if err := set.Add(cmd.GetString("credential-scope"), creds); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// openSink returns the record sink plus a close function. Records are
// echoed to stdout either way so an operator watching the sweep sees
// devices as they finalize.
func openSink(cmd *cli.Command, cfg *config.Config) (discovery.Sink, func(), error) {
	if cmd.GetBool("no-db") {
		return discovery.SinkFunc(printRecord), func() {}, nil
	}

	db, err := storage.NewSQLiteSink(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening result store: %w", err)
	}
	log.Info("Storing results", "path", db.Path())

	tee := discovery.SinkFunc(func(rec *model.DeviceRecord) error {
		printRecord(rec)
		return db.Accept(rec)
	})
	return tee, func() { db.Close() }, nil
}

func printRecord(rec *model.DeviceRecord) error {
	if !rec.Reachability.Alive {
		fmt.Printf("  [-] %s: unreachable\n", rec.Address)
		return nil
	}
	fmt.Printf("  [+] %s: %s", rec.Address, rec.DeviceClass)
	if rec.Hostname != "" {
		fmt.Printf(" (%s)", rec.Hostname)
	}
	fmt.Printf(" os=%s method=%s confidence=%.2f", rec.OSFamily, rec.CollectionMethod, rec.Confidence)
	if len(rec.Ports.OpenPorts) > 0 {
		fmt.Printf(" ports=%v", rec.Ports.OpenPorts)
	}
	fmt.Println()
	return nil
}

func printSummary(p discovery.Progress) {
	fmt.Println()
	fmt.Println("=== Sweep Complete ===")
	fmt.Printf("Attempted:     %d\n", p.Attempted)
	fmt.Printf("Reachable:     %d\n", p.Reachable)
	fmt.Printf("Collected:     %d\n", p.Collected)
	fmt.Printf("Fallback used: %d\n", p.FallbackUsed)
	fmt.Printf("Failed:        %d\n", p.Failed)
}

// buildPipeline assembles the per-device engine from the configuration.
func buildPipeline(cfg *config.Config, creds *model.CredentialSet, privileged bool) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Prober: probe.New(probe.Options{
			Privileged: privileged,
		}),
		Scanner: portscan.New(portscan.Options{
			Concurrency: cfg.PortScanConcurrency,
		}),
		Classifier: classify.New(cfg.ConfidenceThreshold),
		Collectors: []collect.Collector{
			collect.NewWinRMCollector(),
			collect.NewSSHCollector(),
			collect.NewSNMPCollector(),
			collect.NewHTTPCollector(),
		},
		Fallback:      collect.NewBasicCollector(),
		Credentials:   creds,
		PortScanList:  cfg.PortScanList,
		MethodTimeout: cfg.PerMethodTimeout,
		RetryCount:    cfg.RetryCount,
	})
}

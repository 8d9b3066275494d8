package main

import (
	"context"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"github.com/martinsuchenak/assetd/cmd/probe"
	"github.com/martinsuchenak/assetd/cmd/scan"
	"github.com/martinsuchenak/assetd/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	// Initialize structured logging
	log.Configure("info", "console")

	rootCmd := &cli.Command{
		Name:        "assetd",
		Version:     version,
		Usage:       "Network asset discovery and classification engine",
		Description: "Sweeps address ranges, collects device facts over WinRM, SSH, SNMP and HTTP, and classifies every reachable device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"ASSETD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"ASSETD_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logLevel := cmd.GetString("log-level")
			logFormat := cmd.GetString("log-format")
			log.Configure(logLevel, logFormat)
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:        "scan",
				Usage:       "Discovery sweep commands",
				Description: "Run one-shot or scheduled discovery sweeps",
				Commands:    scan.Commands(),
			},
			{
				Name:        "probe",
				Usage:       "Single-host diagnostic commands",
				Description: "Check reachability and open ports of individual hosts",
				Commands:    probe.Commands(),
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultPortScanList is scanned when no explicit port list is configured.
// It mirrors the common-port set used by the TCP reachability probe plus
// the ports the collectors key their priority hints on.
var DefaultPortScanList = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139,
	143, 161, 443, 445, 515, 631, 902, 993, 995, 3306,
	3389, 5060, 5432, 5900, 5985, 8080, 9100,
}

// Config holds the engine configuration.
type Config struct {
	DataDir             string        // Directory for the SQLite result store
	GlobalTimeout       time.Duration // Deadline for a whole run (0 = none)
	PerDeviceTimeout    time.Duration // Deadline for one device pipeline
	PerMethodTimeout    time.Duration // Deadline for one collector invocation
	MaxConcurrency      int           // Concurrent device pipelines
	PortScanList        []int         // TCP ports to scan per device
	PortScanConcurrency int           // Concurrent port probes per device
	ConfidenceThreshold float64       // Minimum classifier score for a label
	RetryCount          int           // Retries for timed-out collector calls
	ConfigFile          string        // Path to .env file (if loaded)
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Command-line parameters (passed as opts)
// 2. .env file (if exists)
// 3. Environment variables
// 4. Default values
func Load(opts *Config) *Config {
	cfg := &Config{
		DataDir:             "./data",
		GlobalTimeout:       0,
		PerDeviceTimeout:    2 * time.Minute,
		PerMethodTimeout:    15 * time.Second,
		MaxConcurrency:      32,
		PortScanList:        append([]int(nil), DefaultPortScanList...),
		PortScanConcurrency: 50,
		ConfidenceThreshold: 0.3,
		RetryCount:          1,
	}

	cfg.DataDir = coalesce(os.Getenv("ASSETD_DATA_DIR"), cfg.DataDir)
	applyEnvDuration(&cfg.GlobalTimeout, "ASSETD_GLOBAL_TIMEOUT")
	applyEnvDuration(&cfg.PerDeviceTimeout, "ASSETD_PER_DEVICE_TIMEOUT")
	applyEnvDuration(&cfg.PerMethodTimeout, "ASSETD_PER_METHOD_TIMEOUT")
	applyEnvInt(&cfg.MaxConcurrency, "ASSETD_MAX_CONCURRENCY")
	applyEnvInt(&cfg.PortScanConcurrency, "ASSETD_PORT_SCAN_CONCURRENCY")
	applyEnvInt(&cfg.RetryCount, "ASSETD_RETRY_COUNT")
	applyEnvFloat(&cfg.ConfidenceThreshold, "ASSETD_CONFIDENCE_THRESHOLD")
	if v := os.Getenv("ASSETD_PORT_SCAN_LIST"); v != "" {
		if ports, err := ParsePortList(v); err == nil {
			cfg.PortScanList = ports
		}
	}

	// .env file overrides plain environment variables
	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := loadFromEnvFile(cfg, envFile); err == nil {
			cfg.ConfigFile = envFile
		}
	}

	if opts != nil {
		if opts.DataDir != "" {
			cfg.DataDir = opts.DataDir
		}
		if opts.GlobalTimeout != 0 {
			cfg.GlobalTimeout = opts.GlobalTimeout
		}
		if opts.PerDeviceTimeout != 0 {
			cfg.PerDeviceTimeout = opts.PerDeviceTimeout
		}
		if opts.PerMethodTimeout != 0 {
			cfg.PerMethodTimeout = opts.PerMethodTimeout
		}
		if opts.MaxConcurrency != 0 {
			cfg.MaxConcurrency = opts.MaxConcurrency
		}
		if len(opts.PortScanList) > 0 {
			cfg.PortScanList = opts.PortScanList
		}
		if opts.PortScanConcurrency != 0 {
			cfg.PortScanConcurrency = opts.PortScanConcurrency
		}
		if opts.ConfidenceThreshold != 0 {
			cfg.ConfidenceThreshold = opts.ConfidenceThreshold
		}
		if opts.RetryCount != 0 {
			cfg.RetryCount = opts.RetryCount
		}
	}

	return cfg
}

// Validate reports configuration errors. These are the only errors that
// abort a run before scheduling; everything past this point is recoverable
// at single-device granularity.
func (c *Config) Validate() error {
	if c.PerDeviceTimeout <= 0 {
		return fmt.Errorf("per-device timeout must be positive, got %v", c.PerDeviceTimeout)
	}
	if c.PerMethodTimeout <= 0 {
		return fmt.Errorf("per-method timeout must be positive, got %v", c.PerMethodTimeout)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.PortScanConcurrency < 1 {
		return fmt.Errorf("port scan concurrency must be at least 1, got %d", c.PortScanConcurrency)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %g", c.ConfidenceThreshold)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative, got %d", c.RetryCount)
	}
	if len(c.PortScanList) == 0 {
		return fmt.Errorf("port scan list must not be empty")
	}
	for _, p := range c.PortScanList {
		if p < 1 || p > 65535 {
			return fmt.Errorf("invalid port %d in port scan list", p)
		}
	}
	return nil
}

// ParsePortList parses a comma separated port list like "22,80,443".
// Ports are deduplicated and returned sorted.
func ParsePortList(s string) ([]int, error) {
	seen := make(map[int]bool)
	var ports []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", part, err)
		}
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("port %d out of range", p)
		}
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("empty port list")
	}
	sort.Ints(ports)
	return ports, nil
}

// loadFromEnvFile loads configuration from a .env file
func loadFromEnvFile(cfg *Config, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "ASSETD_DATA_DIR":
			cfg.DataDir = value
		case "ASSETD_GLOBAL_TIMEOUT":
			setDuration(&cfg.GlobalTimeout, value)
		case "ASSETD_PER_DEVICE_TIMEOUT":
			setDuration(&cfg.PerDeviceTimeout, value)
		case "ASSETD_PER_METHOD_TIMEOUT":
			setDuration(&cfg.PerMethodTimeout, value)
		case "ASSETD_MAX_CONCURRENCY":
			setInt(&cfg.MaxConcurrency, value)
		case "ASSETD_PORT_SCAN_CONCURRENCY":
			setInt(&cfg.PortScanConcurrency, value)
		case "ASSETD_RETRY_COUNT":
			setInt(&cfg.RetryCount, value)
		case "ASSETD_CONFIDENCE_THRESHOLD":
			setFloat(&cfg.ConfidenceThreshold, value)
		case "ASSETD_PORT_SCAN_LIST":
			if ports, err := ParsePortList(value); err == nil {
				cfg.PortScanList = ports
			}
		}
	}

	return scanner.Err()
}

// String returns a string representation of the config source
func (c *Config) String() string {
	if c.ConfigFile != "" {
		return fmt.Sprintf(".env file (%s)", c.ConfigFile)
	}
	return "environment variables"
}

// coalesce returns the first non-empty string value
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func applyEnvDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		setDuration(dst, v)
	}
}

func applyEnvInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		setInt(dst, v)
	}
}

func applyEnvFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		setFloat(dst, v)
	}
}

func setDuration(dst *time.Duration, value string) {
	if d, err := time.ParseDuration(value); err == nil {
		*dst = d
	}
}

func setInt(dst *int, value string) {
	if n, err := strconv.Atoi(value); err == nil {
		*dst = n
	}
}

func setFloat(dst *float64, value string) {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		*dst = f
	}
}

package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(nil)

	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %s, want ./data", cfg.DataDir)
	}
	if cfg.PerDeviceTimeout != 2*time.Minute {
		t.Errorf("PerDeviceTimeout = %v, want 2m", cfg.PerDeviceTimeout)
	}
	if cfg.PerMethodTimeout != 15*time.Second {
		t.Errorf("PerMethodTimeout = %v, want 15s", cfg.PerMethodTimeout)
	}
	if cfg.MaxConcurrency != 32 {
		t.Errorf("MaxConcurrency = %d, want 32", cfg.MaxConcurrency)
	}
	if !reflect.DeepEqual(cfg.PortScanList, DefaultPortScanList) {
		t.Errorf("PortScanList = %v, want default list", cfg.PortScanList)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("ASSETD_MAX_CONCURRENCY", "8")
	t.Setenv("ASSETD_PER_METHOD_TIMEOUT", "5s")
	t.Setenv("ASSETD_PORT_SCAN_LIST", "22,80,443")

	cfg := Load(nil)
	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8 from env", cfg.MaxConcurrency)
	}
	if cfg.PerMethodTimeout != 5*time.Second {
		t.Errorf("PerMethodTimeout = %v, want 5s from env", cfg.PerMethodTimeout)
	}
	if !reflect.DeepEqual(cfg.PortScanList, []int{22, 80, 443}) {
		t.Errorf("PortScanList = %v, want [22 80 443] from env", cfg.PortScanList)
	}
}

func TestLoadOptsWinOverEnvironment(t *testing.T) {
	t.Setenv("ASSETD_MAX_CONCURRENCY", "8")

	cfg := Load(&Config{MaxConcurrency: 4, DataDir: "/tmp/assets"})
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4 from opts", cfg.MaxConcurrency)
	}
	if cfg.DataDir != "/tmp/assets" {
		t.Errorf("DataDir = %s, want /tmp/assets from opts", cfg.DataDir)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero device timeout", func(c *Config) { c.PerDeviceTimeout = 0 }},
		{"zero method timeout", func(c *Config) { c.PerMethodTimeout = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }},
		{"zero port concurrency", func(c *Config) { c.PortScanConcurrency = 0 }},
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"negative retries", func(c *Config) { c.RetryCount = -1 }},
		{"empty port list", func(c *Config) { c.PortScanList = nil }},
		{"port out of range", func(c *Config) { c.PortScanList = []int{22, 70000} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load(nil)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParsePortList(t *testing.T) {
	tests := []struct {
		input   string
		want    []int
		wantErr bool
	}{
		{"22,80,443", []int{22, 80, 443}, false},
		{"443, 80, 22", []int{22, 80, 443}, false}, // sorted
		{"22,22,80", []int{22, 80}, false},         // deduplicated
		{"", nil, true},
		{"22,abc", nil, true},
		{"0", nil, true},
		{"65536", nil, true},
	}

	for _, tt := range tests {
		got, err := ParsePortList(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePortList(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePortList(%q) failed: %v", tt.input, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParsePortList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

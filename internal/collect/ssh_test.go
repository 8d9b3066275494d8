package collect

import (
	"context"
	"testing"
	"time"

	"github.com/martinsuchenak/assetd/internal/model"
)

func TestSSHRequiresCredentials(t *testing.T) {
	c := NewSSHCollector()

	req := &Request{Address: "10.0.0.1", Timeout: time.Second}
	attempt := c.Collect(context.Background(), req)
	if attempt.Status != model.StatusAuthFailed {
		t.Errorf("Status = %s, want auth_failed without credentials", attempt.Status)
	}

	req.Credentials = &model.Credentials{Username: "root"}
	attempt = c.Collect(context.Background(), req)
	if attempt.Status != model.StatusAuthFailed {
		t.Errorf("Status = %s, want auth_failed with username but no secret", attempt.Status)
	}
}

func TestSSHBuildConfigAuthMethods(t *testing.T) {
	c := NewSSHCollector()

	cfg, err := c.buildConfig(&model.Credentials{Username: "root", Password: "secret"})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.User != "root" {
		t.Errorf("User = %s, want root", cfg.User)
	}
	if len(cfg.Auth) != 1 {
		t.Errorf("Expected one auth method for password-only, got %d", len(cfg.Auth))
	}

	if _, err := c.buildConfig(&model.Credentials{Username: "root", SSHPrivateKey: "not a pem"}); err == nil {
		t.Error("Expected error for malformed private key")
	}
}

func TestParseUname(t *testing.T) {
	fields := make(map[string]string)
	parseUname("Linux 6.1.0-18-amd64 x86_64\n", fields)

	if fields["kernel"] != "Linux 6.1.0-18-amd64 x86_64" {
		t.Errorf("kernel = %q", fields["kernel"])
	}
	if fields["os_family"] != string(model.OSLinux) {
		t.Errorf("os_family = %q, want linux", fields["os_family"])
	}

	fields = make(map[string]string)
	parseUname("", fields)
	if len(fields) != 0 {
		t.Errorf("Empty output should set nothing, got %v", fields)
	}
}

func TestParseOSRelease(t *testing.T) {
	output := `PRETTY_NAME="Debian GNU/Linux 12 (bookworm)"
NAME="Debian GNU/Linux"
VERSION_ID="12"
ID=debian
`
	fields := make(map[string]string)
	parseOSRelease(output, fields)

	if fields["os_name"] != "Debian GNU/Linux 12 (bookworm)" {
		t.Errorf("os_name = %q, want PRETTY_NAME to win", fields["os_name"])
	}
	if fields["os_version"] != "12" {
		t.Errorf("os_version = %q", fields["os_version"])
	}
}

func TestParseOSReleaseNameFallback(t *testing.T) {
	fields := make(map[string]string)
	parseOSRelease("NAME=Alpine\nVERSION_ID=3.19\n", fields)

	if fields["os_name"] != "Alpine" {
		t.Errorf("os_name = %q, want NAME when PRETTY_NAME is absent", fields["os_name"])
	}
}

func TestParseProcUptime(t *testing.T) {
	fields := make(map[string]string)
	parseProcUptime("123456.78 987654.32\n", fields)

	if fields["uptime"] != "123456s" {
		t.Errorf("uptime = %q, want 123456s", fields["uptime"])
	}

	fields = make(map[string]string)
	parseProcUptime("garbage", fields)
	if _, ok := fields["uptime"]; ok {
		t.Error("Garbage input should set nothing")
	}
}

func TestParseMemTotal(t *testing.T) {
	fields := make(map[string]string)
	parseMemTotal("MemTotal:       lots kB", fields)
	if _, ok := fields["memory_mb"]; ok {
		t.Error("Non-numeric value should set nothing")
	}

	fields = make(map[string]string)
	parseMemTotal("MemTotal:       16315432 kB\n", fields)
	if fields["memory_mb"] != "15933" {
		t.Errorf("memory_mb = %q, want 15933", fields["memory_mb"])
	}
}

package collect

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/martinsuchenak/assetd/internal/log"
	"github.com/martinsuchenak/assetd/internal/model"
)

// factCommand is one remote introspection command. A failing command only
// loses its own fields; the attempt degrades gracefully.
type factCommand struct {
	name    string
	command string
	parse   func(output string, fields map[string]string)
}

var sshFactCommands = []factCommand{
	{
		name:    "hostname",
		command: "hostname -f 2>/dev/null || hostname",
		parse: func(out string, f map[string]string) {
			setIfPresent(f, "hostname", strings.TrimSpace(out))
		},
	},
	{
		name:    "uname",
		command: "uname -srm",
		parse:   parseUname,
	},
	{
		name:    "os_release",
		command: "cat /etc/os-release 2>/dev/null",
		parse:   parseOSRelease,
	},
	{
		name:    "uptime",
		command: "cat /proc/uptime 2>/dev/null",
		parse:   parseProcUptime,
	},
	{
		name:    "cpu_count",
		command: "nproc 2>/dev/null",
		parse: func(out string, f map[string]string) {
			if n, err := strconv.Atoi(strings.TrimSpace(out)); err == nil && n > 0 {
				f["cpu_count"] = strconv.Itoa(n)
			}
		},
	},
	{
		name:    "memory",
		command: "grep MemTotal /proc/meminfo 2>/dev/null",
		parse:   parseMemTotal,
	},
}

// SSHCollector runs a fixed battery of introspection commands over SSH and
// parses their text output into structured fields.
type SSHCollector struct {
	Port int // Defaults to 22
}

// NewSSHCollector creates an SSH collector on the default port.
func NewSSHCollector() *SSHCollector {
	return &SSHCollector{Port: 22}
}

func (c *SSHCollector) Method() model.CollectionMethod {
	return model.MethodSSH
}

func (c *SSHCollector) Collect(ctx context.Context, req *Request) model.CollectionAttempt {
	attempt := begin(c.Method())

	config, err := c.buildConfig(req.Credentials)
	if err != nil {
		return finalize(attempt, model.StatusAuthFailed, nil, err)
	}
	config.Timeout = req.Timeout

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	port := c.Port
	if port == 0 {
		port = 22
	}

	client, err := c.connect(ctx, req.Address, port, config)
	if err != nil {
		if looksLikeAuthFailure(err) {
			return finalize(attempt, model.StatusAuthFailed, nil, err)
		}
		return finalize(attempt, statusForError(ctx, err), nil, err)
	}
	defer client.Close()

	fields := make(map[string]string)
	fields["address"] = req.Address
	setIfPresent(fields, "banner", strings.TrimSpace(string(client.ServerVersion())))

	for _, fc := range sshFactCommands {
		out, err := runSSHCommand(ctx, client, fc.command)
		if err != nil {
			log.Debug("SSH fact command failed", "address", req.Address, "fact", fc.name, "error", err)
			continue
		}
		fc.parse(out, fields)
	}

	if fields["os_family"] == "" {
		fields["os_family"] = string(model.OSLinux)
	}
	return finalize(attempt, model.StatusSuccess, fields, nil)
}

// buildConfig assembles the client config from credentials. Key auth is
// preferred when both a key and a password are present.
func (c *SSHCollector) buildConfig(creds *model.Credentials) (*ssh.ClientConfig, error) {
	if creds == nil || creds.Username == "" {
		return nil, fmt.Errorf("ssh requires a username and a password or private key")
	}

	var methods []ssh.AuthMethod
	if creds.SSHPrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(creds.SSHPrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if creds.Password != "" {
		methods = append(methods, ssh.Password(creds.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("ssh requires a username and a password or private key")
	}

	return &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, nil
}

// connect dials through a context-aware dialer so cancellation is observed
// during the TCP handshake, not just the SSH one.
func (c *SSHCollector) connect(ctx context.Context, host string, port int, config *ssh.ClientConfig) (*ssh.Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := &net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// runSSHCommand executes one command in its own session, bounded by ctx.
func runSSHCommand(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	defer session.Close()

	done := make(chan struct{})
	var output []byte
	var runErr error

	go func() {
		output, runErr = session.CombinedOutput(cmd)
		close(done)
	}()

	select {
	case <-done:
		if runErr != nil {
			// Non-zero exit still produced output worth parsing.
			if _, ok := runErr.(*ssh.ExitError); ok {
				return string(output), nil
			}
			return "", runErr
		}
		return string(output), nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}

// parseUname handles "Linux 6.1.0 x86_64" style output.
func parseUname(output string, fields map[string]string) {
	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) == 0 {
		return
	}
	fields["kernel"] = strings.Join(parts, " ")
	switch strings.ToLower(parts[0]) {
	case "linux":
		fields["os_family"] = string(model.OSLinux)
	case "darwin", "freebsd", "openbsd", "netbsd", "sunos":
		// Collapsed into the Linux/Unix family for classification.
		fields["os_family"] = string(model.OSLinux)
	}
}

// parseOSRelease handles /etc/os-release KEY=value (or KEY="value") lines.
func parseOSRelease(output string, fields map[string]string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		switch strings.TrimSpace(parts[0]) {
		case "PRETTY_NAME":
			setIfPresent(fields, "os_name", value)
		case "NAME":
			if fields["os_name"] == "" {
				setIfPresent(fields, "os_name", value)
			}
		case "VERSION_ID":
			setIfPresent(fields, "os_version", value)
		}
	}
}

// parseProcUptime handles "12345.67 23456.78" from /proc/uptime.
func parseProcUptime(output string, fields map[string]string) {
	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) == 0 {
		return
	}
	if secs, err := strconv.ParseFloat(parts[0], 64); err == nil && secs > 0 {
		fields["uptime"] = strconv.FormatInt(int64(secs), 10) + "s"
	}
}

// parseMemTotal handles "MemTotal:       16300000 kB" from /proc/meminfo.
func parseMemTotal(output string, fields map[string]string) {
	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) < 2 {
		return
	}
	if kb, err := strconv.ParseInt(parts[1], 10, 64); err == nil && kb > 0 {
		fields["memory_mb"] = strconv.FormatInt(kb/1024, 10)
	}
}

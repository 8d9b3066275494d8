package collect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/masterzen/winrm"

	"github.com/martinsuchenak/assetd/internal/log"
	"github.com/martinsuchenak/assetd/internal/model"
)

// wmicQuery maps one wmic invocation onto attribute fields. The wmic
// /value format prints KEY=value lines, one property per line.
type wmicQuery struct {
	command string
	assign  func(values map[string]string, fields map[string]string)
}

var wmicQueries = []wmicQuery{
	{
		command: "wmic os get Caption,Version,OSArchitecture /value",
		assign: func(v, f map[string]string) {
			setIfPresent(f, "os_name", v["Caption"])
			setIfPresent(f, "os_version", v["Version"])
			setIfPresent(f, "os_arch", v["OSArchitecture"])
		},
	},
	{
		command: "wmic computersystem get Name,Domain,Manufacturer,Model,TotalPhysicalMemory /value",
		assign: func(v, f map[string]string) {
			setIfPresent(f, "hostname", v["Name"])
			setIfPresent(f, "domain", v["Domain"])
			setIfPresent(f, "manufacturer", v["Manufacturer"])
			setIfPresent(f, "hw_model", v["Model"])
			if bytes, err := strconv.ParseInt(v["TotalPhysicalMemory"], 10, 64); err == nil {
				f["memory_mb"] = strconv.FormatInt(bytes/(1024*1024), 10)
			}
		},
	},
	{
		command: "wmic bios get SerialNumber /value",
		assign: func(v, f map[string]string) {
			setIfPresent(f, "serial_number", v["SerialNumber"])
		},
	},
	{
		command: "wmic cpu get NumberOfCores /value",
		assign: func(v, f map[string]string) {
			setIfPresent(f, "cpu_count", v["NumberOfCores"])
		},
	},
	{
		command: "wmic nic where NetEnabled=true get MACAddress /value",
		assign: func(v, f map[string]string) {
			setIfPresent(f, "mac_address", v["MACAddress"])
		},
	},
}

// WinRMCollector gathers the richest attribute set from Windows hosts over
// WinRM. It requires username/password credentials; without them it
// reports auth_failed before touching the network.
type WinRMCollector struct {
	Port   int  // Defaults to 5985
	UseTLS bool // Port 5986 endpoints
}

// NewWinRMCollector creates a WinRM collector on the default HTTP port.
func NewWinRMCollector() *WinRMCollector {
	return &WinRMCollector{Port: 5985}
}

func (c *WinRMCollector) Method() model.CollectionMethod {
	return model.MethodWinRM
}

func (c *WinRMCollector) Collect(ctx context.Context, req *Request) model.CollectionAttempt {
	attempt := begin(c.Method())

	creds := req.Credentials
	if creds == nil || creds.Username == "" || creds.Password == "" {
		return finalize(attempt, model.StatusAuthFailed, nil,
			fmt.Errorf("winrm requires username/password credentials"))
	}

	port := c.Port
	if port == 0 {
		port = 5985
	}

	username := creds.Username
	if creds.Domain != "" {
		username = creds.Domain + "\\" + creds.Username
	}

	endpoint := winrm.NewEndpoint(req.Address, port, c.UseTLS, true, nil, nil, nil, req.Timeout)
	client, err := winrm.NewClient(endpoint, username, creds.Password)
	if err != nil {
		return finalize(attempt, model.StatusUnreachable, nil, fmt.Errorf("creating winrm client: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	fields := make(map[string]string)
	var firstErr error

	for i, q := range wmicQueries {
		stdout, _, exitCode, err := client.RunWithContextWithString(ctx, q.command, "")
		if err != nil {
			// Authentication and transport failures surface on the first
			// shell creation; report them as the attempt outcome. A later
			// command failing only loses its own fields.
			if i == 0 {
				if looksLikeAuthFailure(err) {
					return finalize(attempt, model.StatusAuthFailed, nil, err)
				}
				return finalize(attempt, statusForError(ctx, err), nil, err)
			}
			if firstErr == nil {
				firstErr = err
			}
			log.Debug("WinRM query failed", "address", req.Address, "command", q.command, "error", err)
			continue
		}
		if exitCode != 0 {
			continue
		}
		q.assign(parseWmicValues(stdout), fields)
	}

	if len(fields) == 0 {
		if firstErr == nil {
			firstErr = fmt.Errorf("no wmic output")
		}
		return finalize(attempt, statusForError(ctx, firstErr), nil, firstErr)
	}

	fields["address"] = req.Address
	fields["os_family"] = string(model.OSWindows)
	return finalize(attempt, model.StatusSuccess, fields, nil)
}

// parseWmicValues parses "KEY=value" lines from wmic /value output.
// Repeated keys (multi-instance classes) keep the first value.
func parseWmicValues(output string) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if value == "" {
			continue
		}
		if _, ok := values[key]; !ok {
			values[key] = value
		}
	}
	return values
}

func setIfPresent(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

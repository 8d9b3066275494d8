// Package collect implements the protocol collectors. Each collector
// attempts to retrieve a structured bundle of device attributes over one
// protocol and fails independently: an error, timeout or panic inside a
// collector finalizes its own attempt and never crosses the pipeline
// boundary.
package collect

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/martinsuchenak/assetd/internal/model"
)

// Request carries the per-device pipeline state a collector may use. It is
// owned by one pipeline and never shared across devices.
type Request struct {
	Address      string
	Credentials  *model.Credentials
	Timeout      time.Duration
	Reachability model.ReachabilityResult
	Scan         model.PortScanResult
}

// Collector is the common contract of all protocol collectors.
type Collector interface {
	// Method identifies the collector in attempt records.
	Method() model.CollectionMethod

	// Collect attempts to gather device attributes. It must honor ctx,
	// release all sessions/sockets on every exit path, and always return
	// a finalized attempt rather than panicking through.
	Collect(ctx context.Context, req *Request) model.CollectionAttempt
}

// begin stamps a new attempt. finalize must be called exactly once.
func begin(method model.CollectionMethod) model.CollectionAttempt {
	return model.CollectionAttempt{
		Method:    method,
		StartedAt: time.Now(),
	}
}

// finalize freezes an attempt with its terminal status.
func finalize(a model.CollectionAttempt, status model.AttemptStatus, fields map[string]string, err error) model.CollectionAttempt {
	a.Status = status
	a.Duration = time.Since(a.StartedAt)
	if len(fields) > 0 {
		a.Fields = fields
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// statusForError maps a transport error to an attempt status. Deadline
// errors become timeout; everything else means the service was not there
// to talk to.
func statusForError(ctx context.Context, err error) model.AttemptStatus {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return model.StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.StatusTimeout
	}
	return model.StatusUnreachable
}

// looksLikeAuthFailure matches the auth-rejection phrasing of the SSH and
// WinRM transports.
func looksLikeAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "401") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "access is denied")
}

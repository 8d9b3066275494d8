package model

import "time"

// CollectionMethod identifies one protocol collector.
type CollectionMethod string

const (
	MethodWinRM         CollectionMethod = "winrm"
	MethodSSH           CollectionMethod = "ssh"
	MethodSNMP          CollectionMethod = "snmp"
	MethodHTTP          CollectionMethod = "http"
	MethodBasicFallback CollectionMethod = "basic_fallback"
)

// AttemptStatus is the terminal state of one collection attempt.
type AttemptStatus string

const (
	StatusSuccess     AttemptStatus = "success"
	StatusAuthFailed  AttemptStatus = "auth_failed"
	StatusUnreachable AttemptStatus = "unreachable"
	StatusTimeout     AttemptStatus = "timeout"
	StatusUnsupported AttemptStatus = "unsupported"
)

// CollectionAttempt records one collector invocation. It is created right
// before the collector runs and is immutable once finalized.
type CollectionAttempt struct {
	Method    CollectionMethod  `json:"method"`
	Status    AttemptStatus     `json:"status"`
	Fields    map[string]string `json:"fields,omitempty"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	StartedAt time.Time         `json:"started_at"`
}

// Succeeded reports whether this attempt produced usable attributes.
func (a *CollectionAttempt) Succeeded() bool {
	return a.Status == StatusSuccess
}

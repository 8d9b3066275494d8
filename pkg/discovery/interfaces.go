// Package discovery defines the small public surface of the asset
// discovery engine: where finished device records go and how a running
// sweep reports progress. Persistence and presentation are consumers of
// these interfaces, never part of the engine.
package discovery

import (
	"github.com/martinsuchenak/assetd/internal/model"
)

// Sink receives finished device records. Implementations must be safe for
// concurrent use. Records arrive in completion order, not input order;
// consumers needing the original order re-sort by address.
type Sink interface {
	// Accept takes ownership of one immutable device record.
	Accept(rec *model.DeviceRecord) error
}

// Progress is a snapshot of a running sweep's aggregate counters.
type Progress struct {
	Attempted    int64 `json:"attempted"`
	Reachable    int64 `json:"reachable"`
	Collected    int64 `json:"collected"`
	FallbackUsed int64 `json:"fallback_used"`
	Failed       int64 `json:"failed"`
}

// ProgressReporter exposes live progress of a run.
type ProgressReporter interface {
	Progress() Progress
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(rec *model.DeviceRecord) error

// Accept implements Sink.
func (f SinkFunc) Accept(rec *model.DeviceRecord) error {
	return f(rec)
}

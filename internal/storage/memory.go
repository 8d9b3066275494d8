package storage

import (
	"sync"

	"github.com/martinsuchenak/assetd/internal/model"
)

// MemorySink is a thread-safe, append-only in-memory sink. Used by tests
// and by the CLI when no database path is configured.
type MemorySink struct {
	mu      sync.Mutex
	records []*model.DeviceRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Accept appends the record.
func (m *MemorySink) Accept(rec *model.DeviceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of the accepted records, in completion order.
func (m *MemorySink) Records() []*model.DeviceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.DeviceRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Package storage provides result sinks for finished device records. The
// engine itself never persists anything; these sinks are consumers of the
// discovery output.
package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/martinsuchenak/assetd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteSink writes device records and their attempt history to SQLite so
// operators can query which collection methods were tried per device and
// why each one failed.
type SQLiteSink struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewSQLiteSink opens (or creates) the result database under dataDir.
func NewSQLiteSink(dataDir string) (*SQLiteSink, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "assets.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	sink := &SQLiteSink{db: db, path: dbPath}
	if err := sink.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return sink, nil
}

func (s *SQLiteSink) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	_, err = s.db.Exec(string(schema))
	return err
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string {
	return s.path
}

// Accept stores one device record with its full attempt history in a
// single transaction.
func (s *SQLiteSink) Accept(rec *model.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attributes, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO device_records
			(id, address, hostname, os_family, device_class, confidence,
			 completeness, collection_method, alive, evidence, mac_address,
			 open_ports, attributes, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Address, rec.Hostname, string(rec.OSFamily),
		string(rec.DeviceClass), rec.Confidence, rec.Completeness,
		string(rec.CollectionMethod), boolToInt(rec.Reachability.Alive),
		joinEvidence(rec.Reachability.Evidence), rec.Reachability.MAC,
		joinInts(rec.Ports.OpenPorts), string(attributes), rec.ClassifiedAt)
	if err != nil {
		return fmt.Errorf("inserting device record: %w", err)
	}

	for seq, attempt := range rec.Attempts {
		_, err = tx.Exec(`
			INSERT INTO collection_attempts
				(id, record_id, seq, method, status, error, duration_ms, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			newRowID(), rec.ID, seq, string(attempt.Method), string(attempt.Status),
			attempt.Error, attempt.Duration.Milliseconds(), attempt.StartedAt)
		if err != nil {
			return fmt.Errorf("inserting attempt %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

// CountRecords returns the number of stored device records.
func (s *SQLiteSink) CountRecords() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM device_records`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinEvidence(evidence []model.EvidenceMethod) string {
	parts := make([]string, 0, len(evidence))
	for _, e := range evidence {
		parts = append(parts, string(e))
	}
	return strings.Join(parts, ",")
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}

func newRowID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

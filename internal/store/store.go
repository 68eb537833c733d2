package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_records (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	locator     TEXT NOT NULL,
	instance_id TEXT NOT NULL,
	solver      TEXT NOT NULL,
	payload     BLOB NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS run_records_solver ON run_records (solver);
`

// Store keeps persisted run payloads. Records are append-only: there is no
// update or delete, a correction is a new record.
type Store struct {
	db *sql.DB
}

// Open connects to a SQLite database and ensures the schema exists. A single
// connection is kept so ":memory:" databases are shared across calls.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put appends a raw payload and returns its generated id.
func (s *Store) Put(ctx context.Context, locator, instanceID, solver string, payload []byte) (string, error) {
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_records (id, locator, instance_id, solver, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, locator, instanceID, solver, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert run record %s: %w", locator, err)
	}
	return id, nil
}

// PutPayload encodes and appends a payload produced by a solve.
func (s *Store) PutPayload(ctx context.Context, p domain.RunPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode run payload: %w", err)
	}
	return s.Put(ctx, p.Locator(), p.InstanceID, p.Solver, data)
}

// List returns every stored payload in insertion order.
func (s *Store) List(ctx context.Context) ([]harness.RawRecord, error) {
	return s.query(ctx, `SELECT locator, payload FROM run_records ORDER BY seq`)
}

// ListBySolver returns payloads written under the given solver tag, in
// insertion order.
func (s *Store) ListBySolver(ctx context.Context, solver string) ([]harness.RawRecord, error) {
	return s.query(ctx, `SELECT locator, payload FROM run_records WHERE solver = ? ORDER BY seq`, solver)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]harness.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}
	defer rows.Close()

	records := make([]harness.RawRecord, 0)
	for rows.Next() {
		var rec harness.RawRecord
		if err := rows.Scan(&rec.Locator, &rec.Data); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Package capture persists raw webhook deliveries to a local SQLite
// database for replay and debugging. Capture is best-effort: a failed
// insert never fails the webhook that triggered it.
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Capture is one stored delivery.
type Capture struct {
	ID         string
	RequestID  string
	Surface    string
	ReceivedAt string
	Body       string
}

// Store is a SQLite-backed capture log.
type Store struct {
	db *sql.DB
}

// The capture log is a single append-only table; the schema is applied
// idempotently on open instead of through versioned migrations.
const schema = `
CREATE TABLE IF NOT EXISTS captures (
    id          TEXT PRIMARY KEY,
    request_id  TEXT NOT NULL,
    surface     TEXT NOT NULL,
    received_at TEXT NOT NULL,
    body        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_received_at ON captures(received_at DESC);
`

// Open opens (creating if needed) the capture database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("capture db path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure captures schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert stores one delivery. A zero ID gets a generated uuid and a zero
// ReceivedAt gets the current time.
func (s *Store) Insert(ctx context.Context, c Capture) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ReceivedAt == "" {
		c.ReceivedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO captures(id,request_id,surface,received_at,body) VALUES (?,?,?,?,?)`,
		c.ID, c.RequestID, c.Surface, c.ReceivedAt, c.Body)
	return err
}

// ListRecent returns the newest captures first, at most limit rows.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Capture, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,request_id,surface,received_at,body FROM captures ORDER BY received_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Capture
	for rows.Next() {
		var c Capture
		if err := rows.Scan(&c.ID, &c.RequestID, &c.Surface, &c.ReceivedAt, &c.Body); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

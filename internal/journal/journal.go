// Package journal keeps an append-only history of gallery mutations in SQLite.
package journal

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// FileName is the database file inside the data directory.
const FileName = "history.db"

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Recent limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Action names a kind of mutation.
type Action string

const (
	SketchCreated Action = "sketch.create"
	SketchUpdated Action = "sketch.update"
	SketchDeleted Action = "sketch.delete"
	FolderCreated Action = "folder.create"
	FolderUpdated Action = "folder.update"
	FolderDeleted Action = "folder.delete"
)

// Entry is one recorded mutation. Target is the sketch slug or folder id the
// mutation addressed; Detail carries the resulting key when it differs.
type Entry struct {
	ID        string `json:"id"`
	Action    Action `json:"action"`
	Target    string `json:"target"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Journal is a handle on the history database.
type Journal struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// Open opens (creating if needed) dir/history.db and applies migrations.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dbPath := filepath.Join(dir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	// 0 -> 1: entries table
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS entries (
		  id         TEXT PRIMARY KEY,
		  action     TEXT NOT NULL,
		  target     TEXT NOT NULL,
		  detail     TEXT,
		  created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_target
		ON entries(target, id DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", mode)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// Record appends an entry and returns it.
func (j *Journal) Record(ctx context.Context, action Action, target, detail string) (Entry, error) {
	j.mu.Lock()
	now := j.now()
	id, err := ulid.New(ulid.Timestamp(now), j.entropy)
	j.mu.Unlock()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to generate id: %w", err)
	}

	e := Entry{
		ID:        id.String(),
		Action:    action,
		Target:    target,
		Detail:    detail,
		CreatedAt: now.Unix(),
	}

	var detailCol sql.NullString
	if detail != "" {
		detailCol = sql.NullString{String: detail, Valid: true}
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO entries (id, action, target, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.Target, detailCol, e.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record %s: %w", action, err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means
// DefaultLimit; values above MaxLimit are clamped.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, action, target, detail, created_at FROM entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e      Entry
			action string
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.Target, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Action = Action(action)
		e.Detail = detail.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

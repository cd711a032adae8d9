// Package history keeps a sqlite ledger of generation runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"codesplice/internal/logging"
)

// Status is the outcome of one generation.
type Status string

const (
	StatusBuilt    Status = "built"
	StatusSkipped  Status = "skipped"
	StatusReported Status = "reported"
	StatusFailed   Status = "failed"
)

// Mode distinguishes manifest builds from directive rewrites.
type Mode string

const (
	ModeManifest  Mode = "manifest"
	ModeDirective Mode = "directive"
)

// timeLayout has a fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one ledger entry.
type Run struct {
	ID       string
	Mode     Mode
	Target   string
	File     string
	Provider string
	Model    string
	Status   Status
	Detail   string
	Duration time.Duration
	At       time.Time
}

// Store is the ledger database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Builds record from several goroutines; sqlite wants one writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("history ledger opened at %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		target TEXT NOT NULL,
		file TEXT NOT NULL,
		provider TEXT,
		model TEXT,
		status TEXT NOT NULL,
		detail TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_at ON runs(at);
	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	`)
	return err
}

// Record appends a run, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, target, file, provider, model, status, detail, duration_ms, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Mode), r.Target, r.File, r.Provider, r.Model, string(r.Status), r.Detail,
		r.Duration.Milliseconds(), r.At.UTC().Format(timeLayout))
	if err != nil {
		logging.StoreError("failed to record run %s: %v", r.ID, err)
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	return s.query(ctx, `
		SELECT id, mode, target, file, provider, model, status, detail, duration_ms, at
		FROM runs ORDER BY at DESC, rowid DESC LIMIT ?`, limit)
}

// ForTarget returns up to limit runs of one target, newest first.
func (s *Store) ForTarget(ctx context.Context, target string, limit int) ([]Run, error) {
	return s.query(ctx, `
		SELECT id, mode, target, file, provider, model, status, detail, duration_ms, at
		FROM runs WHERE target = ? ORDER BY at DESC, rowid DESC LIMIT ?`, target, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                       Run
			mode, status            string
			provider, model, detail sql.NullString
			durationMS              int64
			at                      string
		)
		if err := rows.Scan(&r.ID, &mode, &r.Target, &r.File, &provider, &model, &status, &detail, &durationMS, &at); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Mode = Mode(mode)
		r.Status = Status(status)
		r.Provider = provider.String
		r.Model = model.String
		r.Detail = detail.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(timeLayout, at); err == nil {
			r.At = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

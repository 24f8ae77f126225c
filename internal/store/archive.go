// Package store persists pipeline runs in a single SQLite database so past
// extractions can be listed, re-inspected, and compared.
package store

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

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.scribe/scribe.db"

// Run is one archived pipeline execution.
type Run struct {
	ID           string
	CreatedAt    time.Time
	Approach     string
	LLMProvider  string
	Valid        bool
	Completeness float64
	InputChars   int
	// ResultJSON is the serialized pipeline result envelope.
	ResultJSON string
}

// ListOpts controls pagination for ListRuns.
type ListOpts struct {
	Limit  int
	Offset int
}

// Stats summarizes the archive.
type Stats struct {
	RunCount    int64 `json:"total_runs"`
	ValidCount  int64 `json:"valid_runs"`
	HybridCount int64 `json:"hybrid_runs"`
	DBSizeBytes int64 `json:"db_size_bytes"`
}

// Archive is the run persistence interface.
type Archive interface {
	SaveRun(ctx context.Context, r *Run) (string, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOpts) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteArchive implements Archive on SQLite.
type SQLiteArchive struct {
	db     *sql.DB
	dbPath string
}

// NewArchive opens (creating if needed) the archive database.
// Pass ":memory:" for in-memory databases (testing).
func NewArchive(dbPath string) (Archive, error) {
	if dbPath == "" {
		dbPath = expandPath(DefaultDBPath)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	a := &SQLiteArchive{db: db, dbPath: dbPath}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	_, err := a.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    created_at    TEXT NOT NULL,
    approach      TEXT NOT NULL,
    llm_provider  TEXT NOT NULL DEFAULT '',
    valid         INTEGER NOT NULL,
    completeness  REAL NOT NULL,
    input_chars   INTEGER NOT NULL,
    result_json   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`)
	return err
}

// SaveRun inserts a run, assigning a UUID when the ID is empty, and returns
// the run ID.
func (a *SQLiteArchive) SaveRun(ctx context.Context, r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
INSERT INTO runs (id, created_at, approach, llm_provider, valid, completeness, input_chars, result_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.Format(time.RFC3339Nano), r.Approach, r.LLMProvider,
		boolToInt(r.Valid), r.Completeness, r.InputChars, r.ResultJSON)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return r.ID, nil
}

// GetRun fetches a run by ID. Returns sql.ErrNoRows when absent.
func (a *SQLiteArchive) GetRun(ctx context.Context, id string) (*Run, error) {
	row := a.db.QueryRowContext(ctx, `
SELECT id, created_at, approach, llm_provider, valid, completeness, input_chars, result_json
FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns runs newest first.
func (a *SQLiteArchive) ListRuns(ctx context.Context, opts ListOpts) ([]*Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
SELECT id, created_at, approach, llm_provider, valid, completeness, input_chars, result_json
FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run. Deleting a missing run is not an error.
func (a *SQLiteArchive) DeleteRun(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// Stats summarizes archive contents.
func (a *SQLiteArchive) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	row := a.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(valid), 0),
       COALESCE(SUM(CASE WHEN approach = 'hybrid' THEN 1 ELSE 0 END), 0)
FROM runs`)
	if err := row.Scan(&st.RunCount, &st.ValidCount, &st.HybridCount); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	if a.dbPath != ":memory:" {
		if fi, err := os.Stat(a.dbPath); err == nil {
			st.DBSizeBytes = fi.Size()
		}
	}
	return st, nil
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var created string
	var valid int
	if err := row.Scan(&r.ID, &created, &r.Approach, &r.LLMProvider, &valid, &r.Completeness, &r.InputChars, &r.ResultJSON); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		r.CreatedAt = t
	}
	r.Valid = valid != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

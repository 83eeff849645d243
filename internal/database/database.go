package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"project-cleanup/internal/cleanup"
)

// HistoryDB manages the SQLite database of cleanup runs and their per-target results
type HistoryDB struct {
	db *sql.DB
}

// RunRecord summarizes one cleanup pass
type RunRecord struct {
	ID         int64
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	Removed    int
	Absent     int
	Errors     int
	BytesFreed int64
}

// ResultRecord is the outcome of a single target within a run
type ResultRecord struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	Kind         string
	Name         string
	Path         string
	Outcome      string
	Size         int64
	ErrorMessage string
}

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing; foreign keys must be
	// enabled per connection, so they go in the DSN rather than a PRAGMA
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// A real statement instead of Ping() forces the file to be created
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return hdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (h *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		removed INTEGER NOT NULL,
		absent INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		bytes_freed INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		timestamp DATETIME NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		outcome TEXT NOT NULL,
		size INTEGER NOT NULL,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_timestamp ON results(timestamp);
	CREATE INDEX IF NOT EXISTS idx_results_outcome ON results(outcome);
	CREATE INDEX IF NOT EXISTS idx_results_name ON results(name);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := h.db.Exec(schema)
	return err
}

// RecordRun inserts a run and all of its results in one transaction.
// It satisfies cleanup.Recorder.
func (h *HistoryDB) RecordRun(report *cleanup.Report) (err error) {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec(`
	INSERT INTO runs (root, started_at, finished_at, removed, absent, errors, bytes_freed)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.Root,
		report.StartedAt.UTC(),
		report.FinishedAt.UTC(),
		report.Removed(),
		report.Absent(),
		report.Failed(),
		report.BytesFreed(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read run id: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO results (run_id, timestamp, kind, name, path, outcome, size, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Results {
		var errMsg sql.NullString
		if r.Err != nil {
			errMsg = sql.NullString{String: r.Err.Error(), Valid: true}
		}
		at := r.At
		if at.IsZero() {
			at = report.FinishedAt
		}
		if _, err = stmt.Exec(
			runID,
			at.UTC(),
			r.Target.Kind.String(),
			r.Target.Name,
			r.Path,
			string(r.Outcome),
			r.Size,
			errMsg,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", r.Target.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (h *HistoryDB) Vacuum() error {
	_, err := h.db.Exec("VACUUM")
	return err
}

// Prune deletes runs, and through the cascade their results, started before cutoff
func (h *HistoryDB) Prune(cutoff time.Time) (int64, error) {
	res, err := h.db.Exec("DELETE FROM runs WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Package storage provides a SQLite run journal: one row per pipeline run
// plus the diagnostics reported during it.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/serialpong/internal/config"
)

// Store manages the SQLite database connection for the run journal.
type Store struct {
	db *sql.DB
}

// Run end reasons
const (
	EndStopped = "stopped" // cancelled by the operator
	EndFailed  = "failed"  // a task failed terminally
	EndRunning = "running" // not finished (crashed or still active)
)

// Run is one journal entry.
type Run struct {
	ID        string
	Variant   string
	Sink      string
	Width     int
	Height    int
	Tick      time.Duration
	StartedAt time.Time
	EndedAt   time.Time // zero while running

	Produced  uint64
	Rendered  uint64
	Skipped   uint64
	Dropped   uint64
	Leftover  int
	Retries   uint64
	EndReason string
	Error     string
}

// RunCounters are the totals recorded when a run finishes.
type RunCounters struct {
	Produced uint64
	Rendered uint64
	Skipped  uint64
	Dropped  uint64
	Leftover int
	Retries  uint64
}

// DiagnosticEntry is a diagnostic recorded against a run.
type DiagnosticEntry struct {
	ID       int64
	RunID    string
	Task     string
	Severity string
	Message  string
	At       time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	dbPath, err := config.ExpandPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	// The diagnostics writer and the finishing run share one connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			variant TEXT NOT NULL,
			sink TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			tick_ms INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			produced INTEGER NOT NULL DEFAULT 0,
			rendered INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			dropped INTEGER NOT NULL DEFAULT 0,
			leftover INTEGER NOT NULL DEFAULT 0,
			retries INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL DEFAULT 'running',
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS diagnostics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			task TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StartRun records the start of a run and returns it with a fresh ID.
func (s *Store) StartRun(cfg config.PipelineConfig, startedAt time.Time) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Variant:   string(cfg.Variant),
		Sink:      cfg.Sink.Kind,
		Width:     cfg.Screen.Width,
		Height:    cfg.Screen.Height,
		Tick:      cfg.Simulation.Tick,
		StartedAt: startedAt,
		EndReason: EndRunning,
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, variant, sink, width, height, tick_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Variant, run.Sink, run.Width, run.Height,
		run.Tick.Milliseconds(), startedAt.UnixMilli(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("storage: cannot start run: %w", err)
	}
	return run, nil
}

// FinishRun records the counters and outcome of a run. A nil runErr ends
// the run as stopped, anything else as failed.
func (s *Store) FinishRun(id string, endedAt time.Time, c RunCounters, runErr error) error {
	reason, msg := EndStopped, ""
	if runErr != nil {
		reason, msg = EndFailed, runErr.Error()
	}

	res, err := s.db.Exec(
		`UPDATE runs SET ended_at = ?, produced = ?, rendered = ?, skipped = ?,
		        dropped = ?, leftover = ?, retries = ?, end_reason = ?, error = ?
		 WHERE id = ?`,
		endedAt.UnixMilli(), int64(c.Produced), int64(c.Rendered), int64(c.Skipped),
		int64(c.Dropped), c.Leftover, int64(c.Retries), reason, msg, id,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("storage: unknown run %q", id)
	}
	return nil
}

// RecordDiagnostic appends a diagnostic to a run.
func (s *Store) RecordDiagnostic(runID, task, severity, message string, at time.Time) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO diagnostics (run_id, task, severity, message, at) VALUES (?, ?, ?, ?, ?)",
		runID, task, severity, message, at.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot record diagnostic: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}
	return id, nil
}

const runColumns = `id, variant, sink, width, height, tick_ms, started_at, ended_at,
	produced, rendered, skipped, dropped, leftover, retries, end_reason, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                                             Run
		tickMs, started                               int64
		ended                                         sql.NullInt64
		produced, rendered, skipped, dropped, retries int64
	)
	err := sc.Scan(&r.ID, &r.Variant, &r.Sink, &r.Width, &r.Height, &tickMs, &started, &ended,
		&produced, &rendered, &skipped, &dropped, &r.Leftover, &retries, &r.EndReason, &r.Error)
	if err != nil {
		return Run{}, err
	}

	r.Tick = time.Duration(tickMs) * time.Millisecond
	r.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		r.EndedAt = time.UnixMilli(ended.Int64)
	}
	r.Produced = uint64(produced)
	r.Rendered = uint64(rendered)
	r.Skipped = uint64(skipped)
	r.Dropped = uint64(dropped)
	r.Retries = uint64(retries)
	return r, nil
}

// RunByID returns the run with the given ID, or nil if there is none.
func (s *Store) RunByID(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query run: %w", err)
	}
	return &r, nil
}

// RecentRuns returns the most recently started runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return runs, nil
}

// Diagnostics returns the diagnostics of a run in the order recorded.
func (s *Store) Diagnostics(runID string) ([]DiagnosticEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, task, severity, message, at
		 FROM diagnostics
		 WHERE run_id = ?
		 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query diagnostics: %w", err)
	}
	defer rows.Close()

	var entries []DiagnosticEntry
	for rows.Next() {
		var e DiagnosticEntry
		var at int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Task, &e.Severity, &e.Message, &at); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.At = time.UnixMilli(at)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return entries, nil
}

// ClearRuns deletes every run and diagnostic.
func (s *Store) ClearRuns() error {
	if _, err := s.db.Exec("DELETE FROM diagnostics; DELETE FROM runs;"); err != nil {
		return fmt.Errorf("storage: cannot clear runs: %w", err)
	}
	return nil
}

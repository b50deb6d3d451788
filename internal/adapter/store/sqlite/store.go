// Package sqlite persists poll-cycle history for later inspection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run records one poll cycle.
type Run struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	ChangesSeen  int
	ChangesDone  int
	ChangeErrors int
}

// ChangeOutcome records what happened to one change in one run.
type ChangeOutcome struct {
	RunID        string
	ChangeNumber int
	ChangeID     string
	Revision     string
	Subject      string
	Outcome      string
	Fragments    int
	PostedBytes  int
	CreatedAt    time.Time
}

// Store implements the orchestrator's history port using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a history store at the given path.
// Use ":memory:" for an in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	-- One row per poll cycle
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		changes_seen INTEGER DEFAULT 0,
		changes_done INTEGER DEFAULT 0,
		change_errors INTEGER DEFAULT 0
	);

	-- One row per change processed in a cycle
	CREATE TABLE IF NOT EXISTS change_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		change_number INTEGER NOT NULL,
		change_id TEXT NOT NULL,
		revision TEXT NOT NULL,
		subject TEXT,
		outcome TEXT NOT NULL,
		fragments INTEGER DEFAULT 0,
		posted_bytes INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON change_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_change ON change_outcomes(change_id, revision);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateRun stores a new cycle record at cycle start.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	query := `INSERT INTO runs (run_id, started_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, run.RunID, run.StartedAt.Unix()); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun fills in the cycle's closing counters.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	query := `
		UPDATE runs
		SET finished_at = ?, changes_seen = ?, changes_done = ?, change_errors = ?
		WHERE run_id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		run.FinishedAt.Unix(), run.ChangesSeen, run.ChangesDone, run.ChangeErrors, run.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("run not found: %s", run.RunID)
	}
	return nil
}

// SaveOutcome stores one change's outcome for a run.
func (s *Store) SaveOutcome(ctx context.Context, outcome ChangeOutcome) error {
	query := `
		INSERT INTO change_outcomes
			(run_id, change_number, change_id, revision, subject, outcome, fragments, posted_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		outcome.RunID,
		outcome.ChangeNumber,
		outcome.ChangeID,
		outcome.Revision,
		outcome.Subject,
		outcome.Outcome,
		outcome.Fragments,
		outcome.PostedBytes,
		outcome.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

// GetRun returns one cycle record.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	query := `
		SELECT run_id, started_at, COALESCE(finished_at, 0), changes_seen, changes_done, change_errors
		FROM runs WHERE run_id = ?
	`
	var run Run
	var started, finished int64
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID, &started, &finished, &run.ChangesSeen, &run.ChangesDone, &run.ChangeErrors)
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	run.StartedAt = time.Unix(started, 0).UTC()
	if finished > 0 {
		run.FinishedAt = time.Unix(finished, 0).UTC()
	}
	return run, nil
}

// GetOutcomesByRun returns every change outcome recorded for a run.
func (s *Store) GetOutcomesByRun(ctx context.Context, runID string) ([]ChangeOutcome, error) {
	query := `
		SELECT run_id, change_number, change_id, revision, COALESCE(subject, ''),
			outcome, fragments, posted_bytes, created_at
		FROM change_outcomes WHERE run_id = ? ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []ChangeOutcome
	for rows.Next() {
		var o ChangeOutcome
		var created int64
		if err := rows.Scan(&o.RunID, &o.ChangeNumber, &o.ChangeID, &o.Revision,
			&o.Subject, &o.Outcome, &o.Fragments, &o.PostedBytes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.CreatedAt = time.Unix(created, 0).UTC()
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

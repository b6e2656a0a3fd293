// Package journal keeps a SQLite ledger of download runs and the outcome
// of every record in them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    strategy    TEXT NOT NULL,
    concurrency INTEGER NOT NULL,
    total       INTEGER NOT NULL,
    stored      INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    elapsed_ms  INTEGER NOT NULL DEFAULT 0,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS outcomes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(id),
    category   TEXT NOT NULL,
    name       TEXT NOT NULL,
    url        TEXT NOT NULL,
    status     TEXT NOT NULL,
    stage      TEXT NOT NULL DEFAULT '',
    reason     TEXT NOT NULL DEFAULT '',
    bytes      INTEGER NOT NULL DEFAULT 0,
    elapsed_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
`

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the pipeline.
type Run struct {
	ID          string
	Strategy    string
	Concurrency int
	Total       int
	Stored      int
	Failed      int
	Elapsed     time.Duration
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Entry is the terminal outcome of one record within a run.
type Entry struct {
	Category string
	Name     string
	URL      string
	Status   string
	Stage    string
	Reason   string
	Bytes    int
	Elapsed  time.Duration
}

// Journal is a SQLite backed run ledger.
type Journal struct {
	db *sql.DB
}

// New opens (creating if needed) the journal at dbPath.
func New(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun inserts a new run and returns its ID.
func (j *Journal) BeginRun(ctx context.Context, strategy string, concurrency, total int) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, strategy, concurrency, total, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, strategy, concurrency, total, time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Record appends outcome entries to a run in one transaction.
func (j *Journal) Record(ctx context.Context, runID string, entries ...Entry) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (run_id, category, name, url, status, stage, reason, bytes, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			runID, e.Category, e.Name, e.URL, e.Status, e.Stage, e.Reason, e.Bytes, e.Elapsed.Milliseconds(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FinishRun stores the final counts of a run.
func (j *Journal) FinishRun(ctx context.Context, runID string, stored, failed int, elapsed time.Duration) error {
	result, err := j.db.ExecContext(ctx,
		`UPDATE runs SET stored = ?, failed = ?, elapsed_ms = ?, finished_at = ? WHERE id = ?`,
		stored, failed, elapsed.Milliseconds(), time.Now().UTC(), runID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Run retrieves a run by ID.
func (j *Journal) Run(ctx context.Context, runID string) (*Run, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, strategy, concurrency, total, stored, failed, elapsed_ms, started_at, finished_at
		 FROM runs WHERE id = ?`, runID,
	)

	var run Run
	var elapsedMS int64
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Strategy, &run.Concurrency, &run.Total, &run.Stored, &run.Failed,
		&elapsedMS, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// Entries returns the outcomes recorded for a run, in insertion order.
func (j *Journal) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT category, name, url, status, stage, reason, bytes, elapsed_ms
		 FROM outcomes WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var elapsedMS int64
		if err := rows.Scan(&e.Category, &e.Name, &e.URL, &e.Status, &e.Stage, &e.Reason, &e.Bytes, &elapsedMS); err != nil {
			return nil, err
		}
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

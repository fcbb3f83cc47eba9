/*
PURPOSE:
  Persistent run ledger. Records every simulation attempt, failure and
  resume skip so long unattended batches can be audited afterwards.

REQUIREMENTS:
  User-specified:
  - A failed design must be distinguishable from a skipped and a completed one.
  - `coilgun-sim status` reports counts and the failed designs.

  Implementation-discovered:
  - Workers record concurrently; SQLite gets a single connection.
  - The latest row per design is its current status.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine (Recorder), internal/cli (status)
  - Dependencies: modernc.org/sqlite (pure Go driver), github.com/google/uuid

ERROR HANDLING:
  - Every query error is wrapped with the operation that failed.

IMPLEMENTATION RULES:
  - Timestamps are RFC3339Nano text in UTC.

USAGE:
  l, err := ledger.Open("Data/ledger.db")
  defer l.Close()
  l.Record(ctx, ledger.Run{Design: name, Status: ledger.StatusCompleted})

SELF-HEALING INSTRUCTIONS:
  - Schema changes bump SchemaVersion and add a migration in schema.go.

RELATED FILES:
  - internal/ledger/schema.go
  - internal/engine/runner.go

MAINTENANCE:
  - Keep Status values in sync with the progress event kinds.
*/

package ledger

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

// Status is the outcome of one ledger row.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Run is one recorded attempt.
type Run struct {
	BatchID  string
	Design   string
	Index    int
	RunID    string
	Worker   int
	Status   Status
	Attempt  int
	Stage    string
	Error    string
	Steps    int
	Started  time.Time
	Finished time.Time
}

// Counts is the number of designs whose latest row has each status.
type Counts struct {
	Completed int
	Failed    int
	Skipped   int
}

// Total returns the number of designs with any row.
func (c Counts) Total() int { return c.Completed + c.Failed + c.Skipped }

// Ledger is a SQLite-backed run ledger. It is safe for concurrent use.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
// ":memory:" opens a private in-memory ledger.
func Open(path string) (*Ledger, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts r. Zero timestamps are set to now.
func (l *Ledger) Record(ctx context.Context, r Run) error {
	now := time.Now().UTC()
	if r.Finished.IsZero() {
		r.Finished = now
	}
	if r.Started.IsZero() {
		r.Started = r.Finished
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, batch_id, design, variant_index, run_id, worker, status,
		                  attempt, stage, error, steps, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.BatchID, r.Design, r.Index, r.RunID, r.Worker, string(r.Status),
		r.Attempt, r.Stage, r.Error, r.Steps,
		r.Started.UTC().Format(time.RFC3339Nano), r.Finished.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record run of %s: %w", r.Design, err)
	}
	return nil
}

// Counts tallies designs by the status of their latest row. An empty
// batchID counts across all batches.
func (l *Ledger) Counts(ctx context.Context, batchID string) (Counts, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM runs r
		WHERE r.rowid = (SELECT MAX(rowid) FROM runs WHERE design = r.design AND (? = '' OR batch_id = ?))
		GROUP BY status`, batchID, batchID)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("failed to scan counts: %w", err)
		}
		switch Status(status) {
		case StatusCompleted:
			c.Completed = n
		case StatusFailed:
			c.Failed = n
		case StatusSkipped:
			c.Skipped = n
		}
	}
	return c, rows.Err()
}

// Failed returns the latest row of every design whose latest row failed,
// newest first.
func (l *Ledger) Failed(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT batch_id, design, variant_index, run_id, worker, status, attempt,
		       stage, error, steps, started_at, finished_at
		FROM runs r
		WHERE status = 'failed'
		  AND r.rowid = (SELECT MAX(rowid) FROM runs WHERE design = r.design)
		ORDER BY r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var status, started, finished string
		var runID, stage, msg sql.NullString
		if err := rows.Scan(&r.BatchID, &r.Design, &r.Index, &runID, &r.Worker, &status, &r.Attempt,
			&stage, &msg, &r.Steps, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = Status(status)
		r.RunID, r.Stage, r.Error = runID.String, stage.String, msg.String
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestBatch returns the batch id of the most recent row, or "".
func (l *Ledger) LatestBatch(ctx context.Context) (string, error) {
	var id sql.NullString
	err := l.db.QueryRowContext(ctx, `SELECT batch_id FROM runs ORDER BY rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest batch: %w", err)
	}
	return id.String, nil
}

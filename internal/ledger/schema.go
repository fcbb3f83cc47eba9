package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

-- One row per simulation attempt or skip decision
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL,
    design TEXT NOT NULL,
    variant_index INTEGER NOT NULL DEFAULT -1,
    run_id TEXT,             -- solver session id, empty for skips
    worker INTEGER NOT NULL DEFAULT -1,
    status TEXT NOT NULL,    -- 'completed', 'failed', 'skipped'
    attempt INTEGER NOT NULL DEFAULT 0,
    stage TEXT,              -- driver stage of a failure
    error TEXT,
    steps INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_design ON runs(design);
CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch_id);
`

// InitSchema creates the ledger tables when missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	return version, err
}

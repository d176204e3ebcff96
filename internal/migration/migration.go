// Package migration creates the fraction store schema. The statements are
// portable between sqlite3 and postgres.
package migration

import (
	"context"

	"jetfakes/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles fraction store schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all migrations in order. Every statement is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create runs table")
	}

	if err := r.createHistogramsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create histograms table")
	}

	if err := r.createSummariesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create summaries table")
	}

	if err := r.createBinAuditTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create bin_audit table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR(64) PRIMARY KEY,
			channel VARCHAR(8) NOT NULL,
			period VARCHAR(16) NOT NULL,
			suffix VARCHAR(255) NOT NULL DEFAULT '',
			tree VARCHAR(32) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			created_at VARCHAR(40) NOT NULL
		)
	`)
	return err
}

// histograms holds one JSON payload per surface, keyed {category}/{group}_{category}
func (r *MigrationRunner) createHistogramsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS histograms (
			run_id VARCHAR(64) NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			hist_key VARCHAR(64) NOT NULL,
			grp VARCHAR(16) NOT NULL,
			category VARCHAR(16) NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (run_id, hist_key)
		)
	`)
	return err
}

func (r *MigrationRunner) createSummariesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS summaries (
			run_id VARCHAR(64) NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			category VARCHAR(16) NOT NULL,
			grp VARCHAR(16) NOT NULL,
			integral DOUBLE PRECISION NOT NULL,
			fraction DOUBLE PRECISION NOT NULL,
			denominator DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, category, grp)
		)
	`)
	return err
}

// bin_audit records clamped qcd bins and zero-denominator bins
func (r *MigrationRunner) createBinAuditTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bin_audit (
			run_id VARCHAR(64) NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind VARCHAR(16) NOT NULL,
			category VARCHAR(16) NOT NULL,
			x_bin INTEGER NOT NULL,
			y_bin INTEGER NOT NULL,
			raw_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, seq)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_channel_period ON runs(channel, period, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bin_audit_run ON bin_audit(run_id, kind)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package migration

import (
	"context"
	"log"

	"exoai/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

var _ Migrator = (*MigrationRunner)(nil)

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

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createAnalysisSessionsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create analysis_sessions table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	log.Printf("[Migration] Schema at version %s", r.version)
	return nil
}

func (r *MigrationRunner) createAnalysisSessionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_sessions (
			session_id VARCHAR(64) PRIMARY KEY,
			file_name TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_analysis_sessions_expires_at ON analysis_sessions(expires_at)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			log.Printf("[Migration] Warning: failed to create index: %v", err)
		}
	}

	return nil
}

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sqlx.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sqlx.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS uploads (
					id TEXT PRIMARY KEY,
					created_at TIMESTAMP NOT NULL,
					country TEXT NOT NULL DEFAULT '',
					erp TEXT NOT NULL DEFAULT '',
					rows_parsed INTEGER NOT NULL DEFAULT 0,
					data TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS reports (
					id TEXT PRIMARY KEY,
					upload_id TEXT REFERENCES uploads(id),
					created_at TIMESTAMP NOT NULL,
					scores_overall INTEGER NOT NULL,
					report_json TEXT NOT NULL,
					expires_at TIMESTAMP NOT NULL
				)`,
			}
			return execAll(tx, queries)
		},
	},
	{
		Version:     2,
		Description: "Index reports for listing and expiry",
		Up: func(tx *sqlx.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_reports_expires_at ON reports(expires_at)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Index reports by upload",
		Up: func(tx *sqlx.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_reports_upload_id ON reports(upload_id)`,
			})
		},
	},
}

func execAll(tx *sqlx.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Migrate brings the schema up to ExpectedSchemaVersion. Applied versions are
// tracked in schema_migrations so the same path works on every driver.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTxx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		insert := tx.Rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`)
		if _, execErr := tx.Exec(insert, migration.Version, migration.Description, s.utcNow()); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the highest applied migration, or 0 for a fresh
// database. It never modifies the schema.
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tracked, err := s.hasMigrationsTable(ctx)
	if err != nil {
		return 0, err
	}
	if !tracked {
		return 0, nil
	}

	var version int
	if err := s.db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

func (s *Storage) hasMigrationsTable(ctx context.Context) (bool, error) {
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`
	if s.driver == DriverPostgres {
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_migrations'`
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query); err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return count > 0, nil
}

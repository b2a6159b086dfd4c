package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/invoice-readiness/internal/cli"
	"github.com/Veraticus/invoice-readiness/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on startup; run this on its own to prepare a
fresh database or to check which schema version it is at.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	slog.Info("Starting database migration",
		"driver", settings.Database.Driver,
		"database", settings.Database.Path,
		"status_only", status)

	// Create storage instance
	store, err := storage.Open(ctx, settings.StorageOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()

	if status {
		current, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.RenderBox("Database Migration Status", fmt.Sprintf(
			"Database:        %s\nCurrent version: %d\nLatest version:  %d",
			store.Label(), current, storage.ExpectedSchemaVersion)))
		if current < storage.ExpectedSchemaVersion {
			fmt.Fprintln(out, cli.FormatWarning("Pending migrations; run 'readiness migrate' to apply them"))
		}
		return nil
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintln(out, cli.FormatSuccess("Database migrations completed successfully!"))
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/common"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DefaultReportTTL is how long a saved report stays readable.
const DefaultReportTTL = 7 * 24 * time.Hour

// Options configures Open.
type Options struct {
	Now       func() time.Time
	Driver    string
	Path      string
	DSN       string
	ReportTTL time.Duration
	Retry     common.RetryOptions
}

// Storage persists uploads and reports. It implements analysis.UploadSource
// and analysis.ReportStore.
type Storage struct {
	now       func() time.Time
	db        *sqlx.DB
	driver    string
	reportTTL time.Duration
}

var (
	_ analysis.UploadSource = (*Storage)(nil)
	_ analysis.ReportStore  = (*Storage)(nil)
)

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*Storage, error) {
	return Open(context.Background(), Options{Driver: DriverSQLite, Path: dbPath})
}

// Open connects to the configured database and verifies the connection.
// Migrations are not applied; call Migrate.
func Open(ctx context.Context, opts Options) (*Storage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = DefaultReportTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch opts.Driver {
	case DriverSQLite:
		db, err = openSQLite(opts.Path)
	case DriverPostgres:
		db, err = openPostgres(opts.DSN)
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidConfig, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	ping := func() error {
		err := db.PingContext(ctx)
		if isAuthFailure(err) {
			return common.Permanent(err)
		}
		return err
	}
	if err := common.WithRetry(ctx, ping, opts.Retry); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{
		db:        db,
		driver:    opts.Driver,
		reportTTL: opts.ReportTTL,
		now:       opts.Now,
	}, nil
}

func openSQLite(dbPath string) (*sqlx.DB, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(DriverSQLite, dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// isAuthFailure reports a Postgres login rejection, which no retry can fix.
func isAuthFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "28"
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	if err := validateString(dsn, "dsn"); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Driver returns the database driver name.
func (s *Storage) Driver() string {
	return s.driver
}

// Label returns a display name for the backing database.
func (s *Storage) Label() string {
	return LabelFor(s.driver)
}

// LabelFor returns the display name reported for a driver.
func LabelFor(driver string) string {
	if driver == DriverPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

func (s *Storage) utcNow() time.Time {
	return s.now().UTC()
}

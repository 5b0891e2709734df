package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationResult reports the schema version before and after a migration.
type MigrationResult struct {
	Backend schema.Backend `json:"backend"`
	From    uint           `json:"from"`
	To      uint           `json:"to"`
	Changed bool           `json:"changed"`
}

// Migrate runs the relational migrations against conn.
//   - If targetVersion < 0, it migrates to the latest version.
//   - If targetVersion == 0, it rolls back all migrations.
//   - If targetVersion > 0, it migrates to the specified version.
func Migrate(ctx context.Context, conn string, targetVersion int, log *zap.Logger) (MigrationResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	backend, err := contract.DetectBackend(conn)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("%w: %w", ErrUnsupportedBackend, err)
	}
	if backend.Family() != schema.TransactionalFamily {
		return MigrationResult{Backend: backend}, fmt.Errorf("%w: migrations only apply to relational backends (received %s)", ErrUnsupportedOperation, backend)
	}

	d := dialect{backend: backend}
	dsn, err := d.dsn(conn)
	if err != nil {
		return MigrationResult{}, err
	}
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to open %s database: %w", backend, err)
	}
	defer func() { _ = db.Close() }()
	if backend == schema.SQLiteBackend {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		return MigrationResult{}, fmt.Errorf("failed to ping database: %w. %s", err, connectionHint(backend))
	}
	return migrateSQL(ctx, backend, db, dsn, targetVersion, log)
}

// migrateSQL migrates an open database. SQLite reuses db so that in-memory databases
// see their schema; network engines migrate over a dedicated connection pool that
// is closed afterwards.
func migrateSQL(ctx context.Context, backend schema.Backend, db *sql.DB, dsn string, targetVersion int, log *zap.Logger) (MigrationResult, error) {
	result := MigrationResult{Backend: backend}

	instance := db
	if backend != schema.SQLiteBackend {
		own, err := sql.Open(dialect{backend: backend}.driverName(), dsn)
		if err != nil {
			return result, fmt.Errorf("failed to open migration connection: %w", err)
		}
		if err := own.PingContext(ctx); err != nil {
			_ = own.Close()
			return result, fmt.Errorf("failed to ping migration connection: %w", err)
		}
		instance = own
	}

	var (
		driver database.Driver
		err    error
	)
	switch backend {
	case schema.SQLiteBackend:
		driver, err = sqlite.WithInstance(instance, &sqlite.Config{})
	case schema.MySQLBackend:
		driver, err = mysql.WithInstance(instance, &mysql.Config{})
	case schema.PostgresBackend:
		driver, err = postgres.WithInstance(instance, &postgres.Config{})
	default:
		return result, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
	if err != nil {
		if instance != db {
			_ = instance.Close()
		}
		return result, fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}

	// Get the migrations subdirectory of this dialect
	dialectFS, err := fs.Sub(migrationsFS, "migrations/"+string(backend))
	if err != nil {
		return result, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	sourceDriver, err := iofs.New(dialectFS, ".")
	if err != nil {
		return result, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "gitpulse", driver)
	if err != nil {
		return result, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if instance != db {
		// Closing the migrator closes the dedicated pool along with it
		defer func() { _, _ = m.Close() }()
	} else {
		defer func() { _ = sourceDriver.Close() }()
	}

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return result, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return result, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", currentVersion)
	}
	result.From = currentVersion

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return result, fmt.Errorf("failed to migrate %s to version %d: %w", backend, targetVersion, err)
	}

	newVersion, _, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return result, fmt.Errorf("failed to read migrated version: %w", verr)
	}
	result.To = newVersion
	result.Changed = result.To != result.From

	if result.Changed {
		log.Info("Migrated schema", zap.Uint("from", result.From), zap.Uint("to", result.To))
	} else {
		log.Debug("Schema already up to date", zap.Uint("version", result.To))
	}
	return result, nil
}

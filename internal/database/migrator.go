package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrator applies the SQL files under migrations/ to the bookmark database.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // database/sql view of the pool; closed by Close
	logger  zerolog.Logger
}

// NewMigrator creates a migrator reading migrationsPath.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	switch {
	case db == nil:
		return nil, fmt.Errorf("database is required")
	case db.pool == nil:
		return nil, fmt.Errorf("database pool not initialized")
	case migrationsPath == "":
		return nil, fmt.Errorf("migrations path is required")
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger.With().Str("migrations", migrationsPath).Logger(),
	}, nil
}

// Up applies every pending migration. Nothing to apply is not an error.
func (m *Migrator) Up() error {
	if err := ignoreNoChange(m.migrate.Up()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	m.logVersion("bookmark schema up to date")
	return nil
}

// Down rolls back every migration, dropping the bookmark tables.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back bookmark schema")
	if err := ignoreNoChange(m.migrate.Down()); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

// Steps applies n migrations (negative rolls back). Running past either end
// is not an error.
func (m *Migrator) Steps(n int) error {
	err := ignoreNoChange(m.migrate.Steps(n))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migration steps: %w", err)
	}
	m.logVersion("migration steps applied")
	return nil
}

// Version returns the applied version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force records version as applied without running anything. Used to clear
// a dirty state after a failed migration was fixed by hand.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version")
	return m.migrate.Force(version)
}

// Close releases the migration source and the database/sql wrapper.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	return errors.Join(wrap("close source", sourceErr), wrap("close database", dbErr))
}

func (m *Migrator) logVersion(msg string) {
	v, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		m.logger.Warn().Err(err).Msg("could not read migration version")
		return
	}
	m.logger.Info().Uint("version", v).Bool("dirty", dirty).Msg(msg)
}

// MigrateUp applies pending migrations from path while holding
// MigrationLockKey.
func MigrateUp(ctx context.Context, db *DB, path string, logger zerolog.Logger) error {
	return db.WithAdvisoryLock(ctx, MigrationLockKey, func() error {
		m, err := NewMigrator(db, path, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := m.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("failed to close migrator")
			}
		}()
		return m.Up()
	})
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

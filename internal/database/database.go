// Package database provides PostgreSQL connectivity and migrations for the
// bookmark store.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/config"
)

const (
	// HealthCheckTimeout bounds the ping and schema query made by Health.
	HealthCheckTimeout = 5 * time.Second

	// MigrationLockKey is the advisory lock held while migrations run so that
	// instances starting together do not migrate concurrently.
	MigrationLockKey int64 = 0x70617065726665 // "paperfe"

	// MigrationsTable records the applied schema version.
	MigrationsTable = "schema_migrations"
)

// Health states reported in HealthStatus.Status.
const (
	StatusHealthy    = "healthy"
	StatusUnhealthy  = "unhealthy"
	StatusUnmigrated = "unmigrated"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// HealthStatus is the readiness view of the bookmark database.
type HealthStatus struct {
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	SchemaVersion uint   `json:"schema_version"`
	TotalConns    int32  `json:"total_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	IdleConns     int32  `json:"idle_conns"`
	MaxConns      int32  `json:"max_conns"`
}

// DB is the bookmark store's connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// DBTX is satisfied by *DB, *pgxpool.Pool and pgx.Tx, so stores can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ DBTX = (*DB)(nil)

// New opens a pool for cfg and pings it.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	logger = logger.With().Str("component", "database").Logger()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", cfg.MaxConns).
		Msg("bookmark database connected")

	return &DB{pool: pool, logger: logger}, nil
}

// Close closes the pool. It is safe on a zero DB.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
		db.logger.Info().Msg("bookmark database closed")
	}
}

// Health pings the database and reads the applied schema version. A
// reachable database without a clean schema reports StatusUnmigrated.
func (db *DB) Health(ctx context.Context) HealthStatus {
	stat := db.pool.Stat()
	health := HealthStatus{
		Status:        StatusHealthy,
		TotalConns:    stat.TotalConns(),
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		MaxConns:      stat.MaxConns(),
	}

	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	if err := db.pool.Ping(ctx); err != nil {
		health.Status = StatusUnhealthy
		health.Error = err.Error()
		return health
	}

	version, dirty, err := db.schemaVersion(ctx)
	switch {
	case err != nil:
		health.Status = StatusUnmigrated
		health.Error = err.Error()
	case dirty:
		health.Status = StatusUnmigrated
		health.Error = fmt.Sprintf("schema version %d is dirty", version)
	}
	health.SchemaVersion = version
	return health
}

func (db *DB) schemaVersion(ctx context.Context) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := db.pool.QueryRow(ctx, "SELECT version, dirty FROM "+MigrationsTable+" LIMIT 1").Scan(&version, &dirty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable) {
			return 0, false, errors.New("no migrations applied")
		}
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return uint(version), dirty, nil
}

// Exec implements DBTX.
func (db *DB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, args...)
}

// QueryRow implements DBTX.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// Query implements DBTX.
func (db *DB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// SendBatch implements DBTX.
func (db *DB) SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	return db.pool.SendBatch(ctx, batch)
}

// WithAdvisoryLock runs fn while holding the session advisory lock key. The
// lock is taken on a dedicated connection, blocking until it is available,
// and released before returning.
func (db *DB) WithAdvisoryLock(ctx context.Context, key int64, fn func() error) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer func() {
		// Fresh context: the unlock must run even after ctx is cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), HealthCheckTimeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			db.logger.Error().Err(err).Int64("lock_key", key).Msg("failed to release advisory lock")
		}
	}()

	return fn()
}

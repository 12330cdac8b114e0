// Package postgres manages PostgreSQL connectivity: a database/sql pool over
// lib/pq for the run history, a pgx pool for bulk catalog work, and schema
// migrations.
package postgres

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

const (
	connectTimeout     = 5 * time.Second
	poolUsageWarnRatio = 0.8
)

// sqlOpen is replaced in tests.
var sqlOpen = sql.Open

// Connection owns the database/sql pool.
type Connection struct {
	db     *sql.DB
	logger logging.Logger
	once   sync.Once
}

// NewConnection opens and pings a lib/pq pool sized from cfg.
func NewConnection(cfg config.DatabaseConfig, log logging.Logger) (*Connection, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	db, err := sqlOpen("postgres", cfg.URL())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open database")
	}
	configureDB(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed")
	}

	log.Info("postgres connected",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName),
	)
	return &Connection{db: db, logger: log}, nil
}

// NewConnectionWithDB wraps an existing pool, e.g. sqlmock.
func NewConnectionWithDB(db *sql.DB, log logging.Logger) *Connection {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Connection{db: db, logger: log}
}

func configureDB(db *sql.DB, cfg config.DatabaseConfig) {
	maxOpen, maxIdle := cfg.MaxConns, cfg.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = maxOpen / 2
	}
	lifetime, idle := cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(idle)
}

func (c *Connection) DB() *sql.DB { return c.db }

func (c *Connection) Stats() sql.DBStats { return c.db.Stats() }

// HealthCheck pings the database and warns when the pool runs hot.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "database health check failed")
	}
	s := c.Stats()
	if s.OpenConnections > 0 {
		usage := float64(s.InUse) / float64(s.OpenConnections)
		if usage > poolUsageWarnRatio {
			c.logger.Warn("database pool usage high",
				logging.Int("in_use", s.InUse),
				logging.Int("open", s.OpenConnections),
				logging.Float64("usage", usage),
			)
		}
	}
	return nil
}

// Close is idempotent.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		if err = c.db.Close(); err != nil {
			c.logger.Error("postgres close failed", logging.Err(err))
			return
		}
		c.logger.Info("postgres connection closed")
	})
	return err
}

// NewPool opens a pgx pool for COPY-based bulk work.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "invalid database url")
	}
	configurePool(poolCfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create pgx pool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "pgx pool ping failed")
	}
	if log != nil {
		log.Info("pgx pool ready", logging.Int("max_conns", int(poolCfg.MaxConns)))
	}
	return pool, nil
}

// configurePool leaves pgx defaults in place for zero-valued settings.
func configurePool(poolCfg *pgxpool.Config, cfg config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
}

// TxBeginner is satisfied by *pgxpool.Pool and pgx.Tx.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTransaction runs fn inside a transaction, committing on nil and
// rolling back on error or panic.
func WithTransaction(ctx context.Context, db TxBeginner, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

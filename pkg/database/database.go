// Package database provides SQL connection management with lifecycle coordination.
// PostgreSQL is served through pgx and SQLite through go-sqlite3.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

// System manages database connections and lifecycle coordination.
type System interface {
	// Connection returns the underlying database connection pool.
	Connection() *sql.DB
	// Driver returns the configured driver name.
	Driver() string
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	driver      string
	logger      *slog.Logger
	connTimeout time.Duration
}

// New creates a database system with the given configuration.
// It calls sql.Open to validate the DSN and configure pool parameters,
// but does not establish a connection until Start is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	return &database{
		conn:        db,
		driver:      cfg.Driver,
		logger:      logger.With("system", "database", "driver", cfg.Driver),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

// Open returns a configured *sql.DB for cfg without pinging it.
// A private in-memory SQLite database is pinned to a single connection
// so every query observes the same schema.
func Open(cfg *Config) (*sql.DB, error) {
	name := "pgx"
	if cfg.Driver == DriverSQLite {
		name = "sqlite3"
	}

	db, err := sql.Open(name, cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.InMemory() {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return db, nil
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())
	return db, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Driver() string {
	return d.driver
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")

	lc.AddProbe("database", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.connTimeout)
		defer cancel()
		return d.conn.PingContext(ctx)
	})

	lc.OnStartup(func() {
		pingCtx, cancel := context.WithTimeout(lc.Context(), d.connTimeout)
		defer cancel()

		if err := d.conn.PingContext(pingCtx); err != nil {
			d.logger.Error("database ping failed", "error", err)
			return
		}

		d.logger.Info("database connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.logger.Info("closing database connection")

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}

		d.logger.Info("database connection closed")
	})

	return nil
}

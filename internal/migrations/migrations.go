// Package migrations embeds the schema for every supported database driver
// and applies it through golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	kdb "github.com/zxlitianshu/Kekari-agent/pkg/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Source returns the embedded migration files for driver.
func Source(driver string) (fs.FS, string, error) {
	switch driver {
	case kdb.DriverPostgres:
		return files, "postgres", nil
	case kdb.DriverSQLite:
		return files, "sqlite", nil
	}
	return nil, "", fmt.Errorf("no migrations for driver %q", driver)
}

// New creates a migrator for a database URL.
func New(driver, url string) (*migrate.Migrate, error) {
	fsys, dir, err := Source(driver)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	return migrate.NewWithSourceInstance("iofs", src, url)
}

// Up applies all pending migrations on an open connection. The migrator is
// intentionally not closed: closing it would close db.
func Up(db *sql.DB, driver string) error {
	fsys, dir, err := Source(driver)
	if err != nil {
		return err
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	var (
		target database.Driver
		name   string
	)
	switch driver {
	case kdb.DriverPostgres:
		target, err = postgres.WithInstance(db, &postgres.Config{})
		name = "postgres"
	case kdb.DriverSQLite:
		target, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		name = "sqlite3"
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, target)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

package database

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds connection parameters for the durable store.
// Driver selects between PostgreSQL (pgx) and SQLite. Path is only
// consulted for SQLite and accepts ":memory:".
type Config struct {
	Driver          string `toml:"driver"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	Path            string `toml:"path"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
	AutoMigrate     bool   `toml:"auto_migrate"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Driver          string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	Path            string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
	AutoMigrate     string
}

// ConnMaxLifetimeDuration returns ConnMaxLifetime as a time.Duration.
func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// Dsn returns the driver-specific connection string.
func (c *Config) Dsn() string {
	if c.Driver == DriverSQLite {
		if c.InMemory() {
			return "file::memory:?_foreign_keys=on"
		}
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode,
	)
}

// InMemory reports whether the config targets a private in-memory SQLite database.
func (c *Config) InMemory() bool {
	return c.Driver == DriverSQLite && c.Path == ":memory:"
}

// MigrationURL returns the golang-migrate database URL for the configured driver.
func (c *Config) MigrationURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite3://" + c.Path
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Driver != "" {
		c.Driver = overlay.Driver
	}
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
	if overlay.User != "" {
		c.User = overlay.User
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.SSLMode != "" {
		c.SSLMode = overlay.SSLMode
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.MaxOpenConns != 0 {
		c.MaxOpenConns = overlay.MaxOpenConns
	}
	if overlay.MaxIdleConns != 0 {
		c.MaxIdleConns = overlay.MaxIdleConns
	}
	if overlay.ConnMaxLifetime != "" {
		c.ConnMaxLifetime = overlay.ConnMaxLifetime
	}
	if overlay.ConnTimeout != "" {
		c.ConnTimeout = overlay.ConnTimeout
	}
	if overlay.AutoMigrate {
		c.AutoMigrate = true
	}
}

func (c *Config) loadDefaults() {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Path == "" {
		c.Path = "kekari.db"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "15m"
	}
	if c.ConnTimeout == "" {
		c.ConnTimeout = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	setString := func(name string, target *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*target = v
		}
	}
	setInt := func(name string, target *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}

	setString(env.Driver, &c.Driver)
	setString(env.Host, &c.Host)
	setInt(env.Port, &c.Port)
	setString(env.Name, &c.Name)
	setString(env.User, &c.User)
	setString(env.Password, &c.Password)
	setString(env.SSLMode, &c.SSLMode)
	setString(env.Path, &c.Path)
	setInt(env.MaxOpenConns, &c.MaxOpenConns)
	setInt(env.MaxIdleConns, &c.MaxIdleConns)
	setString(env.ConnMaxLifetime, &c.ConnMaxLifetime)
	setString(env.ConnTimeout, &c.ConnTimeout)

	if env.AutoMigrate != "" {
		if v := os.Getenv(env.AutoMigrate); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.AutoMigrate = b
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Name == "" {
			return fmt.Errorf("name required")
		}
		if c.User == "" {
			return fmt.Errorf("user required")
		}
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("path required")
		}
	default:
		return fmt.Errorf("unsupported driver: %s", c.Driver)
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		return fmt.Errorf("invalid conn_timeout: %w", err)
	}
	return nil
}

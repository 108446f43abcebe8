package database_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zxlitianshu/Kekari-agent/pkg/database"
	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

func TestFinalizeDefaults(t *testing.T) {
	tests := []struct {
		name   string
		cfg    database.Config
		checks map[string]any
	}{
		{
			name: "postgres",
			cfg:  database.Config{Name: "kekari", User: "kekari"},
			checks: map[string]any{
				"driver":   "postgres",
				"host":     "localhost",
				"port":     5432,
				"ssl_mode": "disable",
				"max_open": 25,
				"max_idle": 5,
				"lifetime": "15m",
				"timeout":  "5s",
			},
		},
		{
			name: "sqlite",
			cfg:  database.Config{Driver: database.DriverSQLite},
			checks: map[string]any{
				"driver": "sqlite",
				"path":   "kekari.db",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if err := cfg.Finalize(nil); err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			got := map[string]any{
				"driver":   cfg.Driver,
				"host":     cfg.Host,
				"port":     cfg.Port,
				"ssl_mode": cfg.SSLMode,
				"path":     cfg.Path,
				"max_open": cfg.MaxOpenConns,
				"max_idle": cfg.MaxIdleConns,
				"lifetime": cfg.ConnMaxLifetime,
				"timeout":  cfg.ConnTimeout,
			}
			for key, want := range tt.checks {
				if got[key] != want {
					t.Errorf("%s: got %v, want %v", key, got[key], want)
				}
			}
		})
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DB_DRIVER", "sqlite")
	t.Setenv("TEST_DB_PATH", "/var/lib/kekari/ready.db")
	t.Setenv("TEST_DB_MAX_OPEN", "3")
	t.Setenv("TEST_DB_TIMEOUT", "10s")
	t.Setenv("TEST_DB_AUTO_MIGRATE", "true")

	cfg := database.Config{}
	err := cfg.Finalize(&database.Env{
		Driver:       "TEST_DB_DRIVER",
		Path:         "TEST_DB_PATH",
		MaxOpenConns: "TEST_DB_MAX_OPEN",
		ConnTimeout:  "TEST_DB_TIMEOUT",
		AutoMigrate:  "TEST_DB_AUTO_MIGRATE",
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Driver != database.DriverSQLite || cfg.Path != "/var/lib/kekari/ready.db" {
		t.Errorf("driver/path: got %s %s", cfg.Driver, cfg.Path)
	}
	if cfg.MaxOpenConns != 3 || cfg.ConnTimeoutDuration() != 10*time.Second || !cfg.AutoMigrate {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     database.Config
		wantErr string
	}{
		{"unknown driver", database.Config{Driver: "mysql"}, "unsupported driver"},
		{"postgres without name", database.Config{User: "u"}, "name required"},
		{"postgres without user", database.Config{Name: "n"}, "user required"},
		{"bad lifetime", database.Config{Driver: database.DriverSQLite, ConnMaxLifetime: "forever"}, "conn_max_lifetime"},
		{"bad timeout", database.Config{Driver: database.DriverSQLite, ConnTimeout: "soon"}, "conn_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Finalize() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := database.Config{Driver: database.DriverPostgres, Host: "db", Port: 5432}
	base.Merge(&database.Config{Driver: database.DriverSQLite, Path: "x.db", AutoMigrate: true})

	if base.Driver != database.DriverSQLite || base.Host != "db" || base.Path != "x.db" || !base.AutoMigrate {
		t.Errorf("Merge() = %+v", base)
	}
}

func TestConnectionStrings(t *testing.T) {
	tests := []struct {
		name          string
		cfg           database.Config
		wantDsn       string
		wantMigration string
		wantInMemory  bool
	}{
		{
			name:          "postgres",
			cfg:           database.Config{Driver: database.DriverPostgres, Host: "db", Port: 5432, Name: "kekari", User: "k@k", Password: "p w", SSLMode: "disable"},
			wantDsn:       "host=db port=5432 dbname=kekari user=k@k password=p w sslmode=disable",
			wantMigration: "postgres://k%40k:p+w@db:5432/kekari?sslmode=disable",
		},
		{
			name:          "sqlite file",
			cfg:           database.Config{Driver: database.DriverSQLite, Path: "ready.db"},
			wantDsn:       "file:ready.db?_foreign_keys=on&_busy_timeout=5000",
			wantMigration: "sqlite3://ready.db",
		},
		{
			name:          "sqlite memory",
			cfg:           database.Config{Driver: database.DriverSQLite, Path: ":memory:"},
			wantDsn:       "file::memory:?_foreign_keys=on",
			wantMigration: "sqlite3://:memory:",
			wantInMemory:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Dsn(); got != tt.wantDsn {
				t.Errorf("Dsn() = %q, want %q", got, tt.wantDsn)
			}
			if got := tt.cfg.MigrationURL(); got != tt.wantMigration {
				t.Errorf("MigrationURL() = %q, want %q", got, tt.wantMigration)
			}
			if got := tt.cfg.InMemory(); got != tt.wantInMemory {
				t.Errorf("InMemory() = %v, want %v", got, tt.wantInMemory)
			}
		})
	}
}

func TestOpenPoolSettings(t *testing.T) {
	tests := []struct {
		name     string
		cfg      database.Config
		wantOpen int
	}{
		{"postgres pool", database.Config{Driver: database.DriverPostgres, Host: "localhost", Name: "n", User: "u", MaxOpenConns: 42, MaxIdleConns: 7}, 42},
		{"sqlite memory pinned", database.Config{Driver: database.DriverSQLite, Path: ":memory:", MaxOpenConns: 42}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if err := cfg.Finalize(nil); err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			db, err := database.Open(&cfg)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer db.Close()

			if got := db.Stats().MaxOpenConnections; got != tt.wantOpen {
				t.Errorf("MaxOpenConnections = %d, want %d", got, tt.wantOpen)
			}
		})
	}
}

func TestStartRegistersProbe(t *testing.T) {
	cfg := database.Config{Driver: database.DriverSQLite, Path: ":memory:"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	sys, err := database.New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys.Driver() != database.DriverSQLite {
		t.Errorf("Driver() = %s", sys.Driver())
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()

	if failures := lc.Check(context.Background()); len(failures) != 0 {
		t.Errorf("Check() = %v, want no failures", failures)
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if failures := lc.Check(context.Background()); failures["database"] == nil {
		t.Error("probe still passes after the connection closed")
	}
}

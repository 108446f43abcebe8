package infrastructure_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/internal/infrastructure"
	"github.com/zxlitianshu/Kekari-agent/pkg/database"
	"github.com/zxlitianshu/Kekari-agent/pkg/storage"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Database: database.Config{
			Driver:      database.DriverSQLite,
			Path:        ":memory:",
			AutoMigrate: true,
		},
		Version: "0.1.0",
	}
	if err := cfg.Database.Finalize(&database.Env{}); err != nil {
		t.Fatalf("database Finalize() error = %v", err)
	}
	if err := cfg.Log.Finalize(); err != nil {
		t.Fatalf("log Finalize() error = %v", err)
	}
	if err := cfg.Sessions.Finalize(nil); err != nil {
		t.Fatalf("sessions Finalize() error = %v", err)
	}
	if err := cfg.Events.Finalize(nil); err != nil {
		t.Fatalf("events Finalize() error = %v", err)
	}
	if err := cfg.Telemetry.Finalize(nil); err != nil {
		t.Fatalf("telemetry Finalize() error = %v", err)
	}
	return cfg
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database == nil {
		t.Error("Database is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if infra.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if infra.Events == nil {
		t.Error("Events is nil")
	}
	if infra.Telemetry == nil {
		t.Error("Telemetry is nil")
	}
}

func TestNewAutoMigrates(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer infra.Database.Connection().Close()

	var n int
	row := infra.Database.Connection().QueryRow(`SELECT COUNT(*) FROM ready_entities`)
	if err := row.Scan(&n); err != nil {
		t.Fatalf("ready_entities not migrated: %v", err)
	}
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage = storage.Config{
		Enabled:          true,
		ContainerName:    "assets",
		ConnectionString: "not-a-connection-string",
	}

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kekari.log")
	cfg := &config.LogConfig{File: path, Format: config.LogFormatJSON}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	logger, closer := infrastructure.NewLogger(cfg)
	if closer == nil {
		t.Fatal("NewLogger() closer is nil with a file configured")
	}
	logger.Info("hello", "turn", 1)
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q, want a JSON hello record", data)
	}
}

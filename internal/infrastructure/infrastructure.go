// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, sessions, events,
// tracing) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/internal/events"
	"github.com/zxlitianshu/Kekari-agent/internal/migrations"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
	"github.com/zxlitianshu/Kekari-agent/internal/telemetry"
	"github.com/zxlitianshu/Kekari-agent/pkg/database"
	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
	"github.com/zxlitianshu/Kekari-agent/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, asset storage, the session store, the event bus,
// and tracing.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Sessions  sessions.System
	Events    events.System
	Telemetry telemetry.System

	logFile io.Closer
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
// When the database is configured to auto-migrate, pending migrations run here.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger, logFile := NewLogger(&cfg.Log)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(db.Connection(), db.Driver()); err != nil {
			return nil, fmt.Errorf("database migrate failed: %w", err)
		}
		logger.Info("database migrations applied", "driver", db.Driver())
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	sess, err := sessions.NewStore(&cfg.Sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("sessions init failed: %w", err)
	}

	tel, err := telemetry.New(context.Background(), &cfg.Telemetry, cfg.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Sessions:  sess,
		Events:    events.New(&cfg.Events, logger),
		Telemetry: tel,
		logFile:   logFile,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Sessions.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("sessions start failed: %w", err)
	}
	if err := i.Events.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("events start failed: %w", err)
	}
	if err := i.Telemetry.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("telemetry start failed: %w", err)
	}

	if i.logFile != nil {
		i.Lifecycle.OnShutdown(func() {
			<-i.Lifecycle.Context().Done()
			i.logFile.Close()
		})
	}
	return nil
}

package main

import (
	"fmt"
	"time"

	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/internal/infrastructure"
)

// Server owns the process: shared infrastructure, the mounted API
// modules and the HTTP listener.
type Server struct {
	cfg     *config.Config
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("infrastructure: %w", err)
	}

	modules, err := NewModules(infra.Lifecycle.Context(), infra, cfg)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}

	router := buildRouter(infra)
	modules.Mount(router)

	return &Server{
		cfg:     cfg,
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(cfg, router, infra.Logger),
	}, nil
}

// Start brings up the subsystems, then the listener. Readiness flips once
// every startup hook has finished.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return fmt.Errorf("start infrastructure: %w", err)
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return fmt.Errorf("start http: %w", err)
	}

	go func() {
		started := time.Now()
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("ready", "addr", s.cfg.Server.Addr(), "startup", time.Since(started))
	}()
	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	started := time.Now()
	s.infra.Logger.Info("shutting down", "timeout", timeout)

	err := s.infra.Lifecycle.Shutdown(timeout)
	s.infra.Logger.Info("shutdown finished", "elapsed", time.Since(started))
	return err
}

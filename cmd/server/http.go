package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

type httpServer struct {
	http            *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func newHTTPServer(cfg *config.Config, handler http.Handler, logger *slog.Logger) *httpServer {
	logger = logger.With("system", "http")

	// A write deadline shorter than a turn cuts off replies mid-workflow.
	if wt, tt := cfg.Server.WriteTimeoutDuration(), cfg.Chat.TurnTimeoutDuration(); wt > 0 && wt < tt {
		logger.Warn("write timeout is shorter than the turn timeout",
			"write_timeout", wt,
			"turn_timeout", tt,
		)
	}

	return &httpServer{
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.Server.ReadTimeoutDuration(),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeoutDuration(),
			WriteTimeout:      cfg.Server.WriteTimeoutDuration(),
			IdleTimeout:       cfg.Server.IdleTimeoutDuration(),
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger:          logger,
		shutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
	}
}

func (s *httpServer) Start(lc *lifecycle.Coordinator) error {
	s.http.BaseContext = func(net.Listener) context.Context {
		return context.WithoutCancel(lc.Context())
	}

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}

	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
		} else {
			s.logger.Info("server shutdown complete")
		}
	})

	return nil
}

package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

// System defines the session store. Returned sessions are copies; mutating
// one has no effect until it is passed to Save.
type System interface {
	Handler() *Handler
	Start(lc *lifecycle.Coordinator) error

	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Summary, error)
	Clear(ctx context.Context) error
}

// NewStore creates the session store selected by cfg.Backend.
func NewStore(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "sessions", "backend", cfg.Backend)

	switch cfg.Backend {
	case BackendMemory:
		return newMemory(cfg, logger), nil
	case BackendRedis:
		return newRedis(cfg, logger)
	}
	return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return nil
}

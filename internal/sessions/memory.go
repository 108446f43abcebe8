package sessions

import (
	"context"
	"log/slog"
	"slices"

	"github.com/patrickmn/go-cache"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

type memory struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// NewMemory creates an in-process session store whose entries expire after
// cfg.TTL of inactivity.
func NewMemory(cfg *Config, logger *slog.Logger) System {
	return newMemory(cfg, logger.With("system", "sessions", "backend", BackendMemory))
}

func newMemory(cfg *Config, logger *slog.Logger) *memory {
	return &memory{
		cache:  cache.New(cfg.TTLDuration(), cfg.CleanupIntervalDuration()),
		logger: logger,
	}
}

func (m *memory) Handler() *Handler {
	return NewHandler(m, m.logger)
}

func (m *memory) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		m.cache.Flush()
	})
	return nil
}

func (m *memory) Get(_ context.Context, id string) (*Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	x, found := m.cache.Get(id)
	if !found {
		return nil, ErrNotFound
	}
	return x.(*Session).Clone(), nil
}

func (m *memory) Save(_ context.Context, s *Session) error {
	if err := validateID(s.ID); err != nil {
		return err
	}
	m.cache.Set(s.ID, s.Clone(), cache.DefaultExpiration)
	return nil
}

func (m *memory) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if _, found := m.cache.Get(id); !found {
		return ErrNotFound
	}
	m.cache.Delete(id)
	m.logger.Info("session deleted", "id", id)
	return nil
}

func (m *memory) List(_ context.Context) ([]Summary, error) {
	items := m.cache.Items()
	summaries := make([]Summary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, item.Object.(*Session).Summarize())
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (m *memory) Clear(_ context.Context) error {
	n := m.cache.ItemCount()
	m.cache.Flush()
	m.logger.Info("sessions cleared", "count", n)
	return nil
}

// sortSummaries orders by most recent activity, then id.
func sortSummaries(s []Summary) {
	slices.SortFunc(s, func(a, b Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}


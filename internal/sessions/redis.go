package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

const scanCount = 100

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func newRedis(cfg *Config, logger *slog.Logger) (System, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis url not parseable, using it as address", "error", err)
		opt = &redis.Options{Addr: cfg.RedisURL}
	}
	return NewRedis(redis.NewClient(opt), cfg, logger), nil
}

// NewRedis creates a session store over an existing client. Sessions are
// stored as JSON under cfg.KeyPrefix and refreshed to cfg.TTL on save.
func NewRedis(client *redis.Client, cfg *Config, logger *slog.Logger) System {
	return &redisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTLDuration(),
		logger: logger,
	}
}

func (r *redisStore) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *redisStore) Start(lc *lifecycle.Coordinator) error {
	lc.AddProbe("sessions", func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})

	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), 5*time.Second)
		defer cancel()
		if err := r.client.Ping(ctx).Err(); err != nil {
			r.logger.Error("redis ping failed", "error", err)
			return
		}
		r.logger.Info("redis connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := r.client.Close(); err != nil {
			r.logger.Error("redis close failed", "error", err)
			return
		}
		r.logger.Info("redis connection closed")
	})

	return nil
}

func (r *redisStore) key(id string) string {
	return r.prefix + id
}

func (r *redisStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *redisStore) Save(ctx context.Context, s *Session) error {
	if err := validateID(s.ID); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	r.logger.Info("session deleted", "id", id)
	return nil
}

func (r *redisStore) List(ctx context.Context) ([]Summary, error) {
	keys, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}

		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			r.logger.Warn("skipping undecodable session", "key", key, "error", err)
			continue
		}
		summaries = append(summaries, s.Summarize())
	}

	sortSummaries(summaries)
	return summaries, nil
}

func (r *redisStore) Clear(ctx context.Context) error {
	keys, err := r.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	r.logger.Info("sessions cleared", "count", len(keys))
	return nil
}

func (r *redisStore) scan(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

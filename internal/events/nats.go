package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type forwarder struct {
	url    string
	stream string
	prefix string
	logger *slog.Logger

	mu sync.RWMutex
	nc *nats.Conn
	js jetstream.JetStream
}

func newForwarder(cfg *Config, logger *slog.Logger) *forwarder {
	return &forwarder{
		url:    cfg.NATSURL,
		stream: cfg.Stream,
		prefix: cfg.SubjectPrefix,
		logger: logger.With("sink", "nats"),
	}
}

func (f *forwarder) connect(ctx context.Context) error {
	nc, err := nats.Connect(f.url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("create jetstream: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(streamCtx, jetstream.StreamConfig{
		Name:     f.stream,
		Subjects: []string{f.prefix + ".>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		f.logger.Warn("ensure stream failed", "stream", f.stream, "error", err)
	}

	f.mu.Lock()
	f.nc, f.js = nc, js
	f.mu.Unlock()

	f.logger.Info("nats forwarder connected", "url", f.url, "stream", f.stream)
	return nil
}

func (f *forwarder) forward(ctx context.Context, e Event, payload []byte) error {
	f.mu.RLock()
	js := f.js
	f.mu.RUnlock()

	if js == nil {
		return nil
	}

	subject := fmt.Sprintf("%s.%s", f.prefix, e.Type)
	if _, err := js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (f *forwarder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nc != nil {
		f.nc.Close()
		f.nc, f.js = nil, nil
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

// Publisher emits events. Publishing is best effort; callers log failures
// and never fail a turn because of them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// System is the event bus and its lifecycle.
type System interface {
	Publisher
	// Subscribe returns a channel of raw messages for topic. The channel
	// closes when ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	// Start registers the log sink, the optional NATS forwarder, and shutdown.
	Start(lc *lifecycle.Coordinator) error
	Close() error
}

const forwardTimeout = 5 * time.Second

type bus struct {
	pubSub    *gochannel.GoChannel
	forwarder *forwarder
	logger    *slog.Logger
}

// New creates the in-process bus. The NATS connection, if configured,
// is established in Start.
func New(cfg *Config, logger *slog.Logger) System {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.Buffer)},
		watermill.NewStdLogger(false, false),
	)

	b := &bus{
		pubSub: pubSub,
		logger: logger.With("system", "events"),
	}
	if cfg.NATSURL != "" {
		b.forwarder = newForwarder(cfg, b.logger)
	}
	return b
}

func (b *bus) Publish(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("type", e.Type)
	msg.Metadata.Set("subject", e.Subject)

	if err := b.pubSub.Publish(TopicCatalog, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", e.Type, err)
	}
	return nil
}

func (b *bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

func (b *bus) Start(lc *lifecycle.Coordinator) error {
	messages, err := b.pubSub.Subscribe(lc.Context(), TopicCatalog)
	if err != nil {
		return fmt.Errorf("subscribe sink: %w", err)
	}

	if b.forwarder != nil {
		lc.OnStartup(func() {
			if err := b.forwarder.connect(lc.Context()); err != nil {
				b.logger.Error("nats forwarder unavailable", "error", err)
			}
		})
	}

	go b.sink(messages)

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := b.Close(); err != nil {
			b.logger.Error("event bus close failed", "error", err)
		}
	})

	return nil
}

func (b *bus) sink(messages <-chan *message.Message) {
	for msg := range messages {
		var e Event
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			b.logger.Warn("dropping malformed event", "error", err)
			msg.Ack()
			continue
		}

		b.logger.Info("event", "type", e.Type, "subject", e.Subject, "session", e.Session)

		if b.forwarder != nil {
			ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
			if err := b.forwarder.forward(ctx, e, msg.Payload); err != nil {
				b.logger.Warn("event forward failed", "type", e.Type, "error", err)
			}
			cancel()
		}
		msg.Ack()
	}
}

func (b *bus) Close() error {
	if b.forwarder != nil {
		b.forwarder.close()
	}
	return b.pubSub.Close()
}

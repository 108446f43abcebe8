package events_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zxlitianshu/Kekari-agent/internal/events"
	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     events.Config
		env     map[string]string
		check   func(*testing.T, events.Config)
		wantErr string
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c events.Config) {
				if c.Buffer != 64 || c.Stream != "KEKARI" || c.SubjectPrefix != "kekari" || c.NATSURL != "" {
					t.Errorf("defaults = %+v", c)
				}
			},
		},
		{
			name: "env overrides",
			env: map[string]string{
				"TEST_BUFFER": "8",
				"TEST_NATS":   "nats://localhost:4222",
				"TEST_STREAM": "CATALOG",
			},
			check: func(t *testing.T, c events.Config) {
				if c.Buffer != 8 || c.NATSURL != "nats://localhost:4222" || c.Stream != "CATALOG" {
					t.Errorf("overrides = %+v", c)
				}
			},
		},
		{
			name:    "negative buffer",
			cfg:     events.Config{Buffer: -1},
			wantErr: "buffer",
		},
	}

	env := &events.Env{
		Buffer:        "TEST_BUFFER",
		NATSURL:       "TEST_NATS",
		Stream:        "TEST_STREAM",
		SubjectPrefix: "TEST_PREFIX",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := tt.cfg
			err := cfg.Finalize(env)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Finalize() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestNewEvent(t *testing.T) {
	e := events.NewEvent(events.RecordCreated, "CHAIR1", map[string]any{"title": "Chair"})
	tagged := e.WithSession("s1")

	if e.ID == "" || e.OccurredAt.IsZero() {
		t.Errorf("NewEvent() = %+v, want id and time", e)
	}
	if e.Session != "" {
		t.Error("WithSession() modified the original event")
	}
	if tagged.Session != "s1" || tagged.ID != e.ID {
		t.Errorf("WithSession() = %+v", tagged)
	}
}

func TestSessionContext(t *testing.T) {
	if got := events.SessionFromContext(context.Background()); got != "" {
		t.Errorf("SessionFromContext() = %q, want empty", got)
	}
	ctx := events.ContextWithSession(context.Background(), "s1")
	if got := events.SessionFromContext(ctx); got != "s1" {
		t.Errorf("SessionFromContext() = %q, want s1", got)
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := events.New(&events.Config{Buffer: 4}, discard())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Subscribe(ctx, events.TopicCatalog)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	sent := events.NewEvent(events.ArtifactCommitted, "CHAIR1", nil).WithSession("s1")
	if err := bus.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-messages:
		defer msg.Ack()
		if msg.UUID != sent.ID {
			t.Errorf("message uuid = %s, want %s", msg.UUID, sent.ID)
		}
		if got := msg.Metadata.Get("type"); got != events.ArtifactCommitted {
			t.Errorf("metadata type = %q", got)
		}
		if got := msg.Metadata.Get("subject"); got != "CHAIR1" {
			t.Errorf("metadata subject = %q", got)
		}

		var got events.Event
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("payload unmarshal: %v", err)
		}
		if got.Type != sent.Type || got.Session != "s1" {
			t.Errorf("payload = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestStartAndShutdown(t *testing.T) {
	bus := events.New(&events.Config{Buffer: 4}, discard())
	lc := lifecycle.New()

	if err := bus.Start(lc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lc.WaitForStartup()

	if err := bus.Publish(context.Background(), events.NewEvent(events.RecordDeleted, "CHAIR1", nil)); err != nil {
		t.Errorf("Publish() error = %v", err)
	}

	if err := lc.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

package sessions_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

func newMemoryStore(t *testing.T) sessions.System {
	t.Helper()
	cfg := &sessions.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return sessions.NewMemory(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMemoryGetMissing(t *testing.T) {
	store := newMemoryStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemorySaveGetIsolated(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	s := sessions.New("abc")
	s.Append(sessions.RoleUser, "hello")
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s.Append(sessions.RoleAssistant, "unsaved")

	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.History) != 1 {
		t.Errorf("len(History) = %d, want 1", len(got.History))
	}

	got.Append(sessions.RoleAssistant, "also unsaved")
	again, _ := store.Get(ctx, "abc")
	if len(again.History) != 1 {
		t.Errorf("len(History) after mutating copy = %d, want 1", len(again.History))
	}
}

func TestMemoryListDeleteClear(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Save(ctx, sessions.New(id)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Errorf("len(List()) = %d, want 3", len(list))
	}

	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "b"); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	list, _ = store.List(ctx)
	if len(list) != 0 {
		t.Errorf("len(List()) after Clear = %d, want 0", len(list))
	}
}

func TestMemoryRejectsEmptyID(t *testing.T) {
	store := newMemoryStore(t)

	if err := store.Save(context.Background(), sessions.New("  ")); !errors.Is(err, sessions.ErrInvalidID) {
		t.Errorf("Save() error = %v, want ErrInvalidID", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     sessions.Config
		wantErr bool
	}{
		{"defaults", sessions.Config{}, false},
		{"redis without url", sessions.Config{Backend: sessions.BackendRedis}, true},
		{"redis with url", sessions.Config{Backend: sessions.BackendRedis, RedisURL: "redis://localhost:6379/0"}, false},
		{"unknown backend", sessions.Config{Backend: "etcd"}, true},
		{"bad ttl", sessions.Config{TTL: "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("Finalize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("TEST_SESSIONS_TTL", "2h")
	t.Setenv("TEST_SESSIONS_PREFIX", "chat:")

	cfg := sessions.Config{}
	env := &sessions.Env{TTL: "TEST_SESSIONS_TTL", KeyPrefix: "TEST_SESSIONS_PREFIX"}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.TTL != "2h" {
		t.Errorf("TTL = %q, want 2h", cfg.TTL)
	}
	if cfg.KeyPrefix != "chat:" {
		t.Errorf("KeyPrefix = %q, want chat:", cfg.KeyPrefix)
	}
	if cfg.Backend != sessions.BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Backend)
	}
}

func TestNewStoreBackends(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &sessions.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	cfg.Backend = sessions.BackendMemory
	store, err := sessions.NewStore(cfg, logger)
	if err != nil {
		t.Fatalf("NewStore(memory) error = %v", err)
	}
	if err := store.Save(context.Background(), sessions.New("abc")); err != nil {
		t.Errorf("Save() error = %v", err)
	}

	cfg.Backend = "etcd"
	if _, err := sessions.NewStore(cfg, logger); err == nil {
		t.Error("NewStore(etcd) error = nil, want unsupported backend")
	}
}

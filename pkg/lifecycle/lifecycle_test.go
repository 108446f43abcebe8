package lifecycle_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("ready before WaitForStartup")
	}

	lc.WaitForStartup()
	if !lc.Ready() {
		t.Error("not ready after WaitForStartup")
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if lc.Ready() {
		t.Error("still ready after Shutdown")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			count.Add(1)
		})
	}

	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context should be cancelled after shutdown")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestCheck(t *testing.T) {
	errDown := errors.New("connection refused")

	tests := []struct {
		name   string
		probes map[string]lifecycle.Probe
		want   []string
	}{
		{"no probes", nil, nil},
		{
			"all healthy",
			map[string]lifecycle.Probe{
				"database": func(context.Context) error { return nil },
				"sessions": func(context.Context) error { return nil },
			},
			nil,
		},
		{
			"one failing",
			map[string]lifecycle.Probe{
				"database": func(context.Context) error { return nil },
				"sessions": func(context.Context) error { return errDown },
			},
			[]string{"sessions"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := lifecycle.New()
			for name, p := range tt.probes {
				lc.AddProbe(name, p)
			}

			failures := lc.Check(context.Background())
			if len(failures) != len(tt.want) {
				t.Fatalf("Check() = %v, want failures %v", failures, tt.want)
			}
			for _, name := range tt.want {
				if !errors.Is(failures[name], errDown) {
					t.Errorf("Check()[%s] = %v, want %v", name, failures[name], errDown)
				}
			}
		})
	}
}

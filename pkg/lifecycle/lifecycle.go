// Package lifecycle coordinates startup, readiness, and shutdown across the
// service's subsystems.
package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Probe checks that a dependency is reachable.
type Probe func(ctx context.Context) error

// Coordinator manages startup and shutdown hooks for the application lifecycle.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup
	ready      bool
	readyMu    sync.RWMutex

	probesMu sync.RWMutex
	probes   map[string]Probe
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		probes: make(map[string]Probe),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// AddProbe registers a named readiness probe. A later probe with the same
// name replaces the earlier one.
func (c *Coordinator) AddProbe(name string, p Probe) {
	c.probesMu.Lock()
	defer c.probesMu.Unlock()
	c.probes[name] = p
}

// Ready returns true after all startup hooks have completed.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

// Check runs every probe concurrently and returns the failures keyed by
// probe name. An empty map means every dependency answered.
func (c *Coordinator) Check(ctx context.Context) map[string]error {
	c.probesMu.RLock()
	probes := maps.Clone(c.probes)
	c.probesMu.RUnlock()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = make(map[string]error)
	)
	for _, name := range slices.Sorted(maps.Keys(probes)) {
		probe := probes[name]
		wg.Go(func() {
			if err := probe(ctx); err != nil {
				mu.Lock()
				failures[name] = err
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return failures
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.readyMu.Lock()
	c.ready = true
	c.readyMu.Unlock()
}

// Shutdown cancels the context and waits for shutdown hooks to complete
// within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.readyMu.Lock()
	c.ready = false
	c.readyMu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

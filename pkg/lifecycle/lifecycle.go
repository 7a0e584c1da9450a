// Package lifecycle coordinates startup hooks, shutdown hooks, and tracked
// background work for a long-running process.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Coordinator runs startup and shutdown hooks and tracks background tasks
// that must finish before the process exits.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	tasksCtx   context.Context
	stopTasks  context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup
	tasksWg    sync.WaitGroup
	ready      bool
	readyMu    sync.RWMutex
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	tasksCtx, stopTasks := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:       ctx,
		cancel:    cancel,
		tasksCtx:  tasksCtx,
		stopTasks: stopTasks,
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

// Go runs fn in the background. The context passed to fn is cancelled when
// Shutdown begins, and the shutdown hooks are released only after every
// task has returned, so tasks may still use the database or storage while
// they wind down.
func (c *Coordinator) Go(fn func(ctx context.Context)) {
	c.tasksWg.Go(func() {
		fn(c.tasksCtx)
	})
}

// Ready returns true after all startup hooks have completed.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.readyMu.Lock()
	c.ready = true
	c.readyMu.Unlock()
}

// Shutdown stops background tasks and waits for them, then cancels the
// context and waits for the shutdown hooks. Both phases share the timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.readyMu.Lock()
	c.ready = false
	c.readyMu.Unlock()

	c.stopTasks()

	done := make(chan struct{})
	go func() {
		c.tasksWg.Wait()
		c.cancel()
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

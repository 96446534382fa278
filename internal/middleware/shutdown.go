package middleware

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// GracefulShutdown coordinates an ordered teardown of process resources
// on SIGINT/SIGTERM: the request surface stops accepting work, drains,
// then downstream resources close in reverse dependency order
// (spec.md §4.3 "Scoped resource discipline").
type GracefulShutdown struct {
	mu        sync.Mutex
	callbacks []func()
	sigCh     chan os.Signal
	done      chan struct{}
}

// NewGracefulShutdown builds a shutdown coordinator.
func NewGracefulShutdown() *GracefulShutdown {
	return &GracefulShutdown{
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
}

// OnShutdown registers a teardown callback. Callbacks run in the reverse
// order they were registered, so register in dependency-acquisition order
// (store first, audit pipeline last) and they tear down audit-first.
func (g *GracefulShutdown) OnShutdown(cb func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, cb)
}

// ListenForSignals blocks until SIGINT/SIGTERM/SIGQUIT, then runs every
// registered callback in reverse order and closes done.
func (g *GracefulShutdown) ListenForSignals() {
	signal.Notify(g.sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-g.sigCh
	g.Shutdown()
}

// Shutdown runs every registered callback in reverse order; safe to call
// directly (e.g. from a test) without waiting for a signal.
func (g *GracefulShutdown) Shutdown() {
	g.mu.Lock()
	callbacks := append([]func(){}, g.callbacks...)
	g.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i]()
	}
	close(g.done)
}

// Wait blocks until Shutdown has completed.
func (g *GracefulShutdown) Wait() {
	<-g.done
}

// Package orchestrator wires a node's components into one lifecycle:
// start them in dependency order against a deadline, and reverse that
// order on stop. Grounded on the manual wiring/signal handling of the
// teacher's cmd/indexer/main.go, lifted into a reusable abstraction
// (spec §4.6).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Component is one piece of the running node: a store, a network
// transport, the ingest engine's subscriptions, or anything else the
// node needs up before it is considered ready.
type Component interface {
	// Name identifies the component in logs and errors.
	Name() string

	// Start brings the component up. It must return once the component
	// is ready to serve, or ctx is done, whichever comes first.
	Start(ctx context.Context) error

	// Stop releases the component's resources. Must be idempotent: a
	// second call after a successful stop is a no-op, not an error.
	Stop(ctx context.Context) error
}

// Orchestrator starts a fixed list of components in order and stops
// them in reverse order. If any component fails to start before its
// deadline, every component already started is stopped before the
// failure is returned (spec §4.6: "fail fast ... already-started
// components are stopped in reverse").
type Orchestrator struct {
	logger     *slog.Logger
	components []Component

	mu      sync.Mutex
	started []Component // in start order, for reverse-order stop
	stopped bool
}

// New returns an Orchestrator over components, started and stopped in
// the order given.
func New(logger *slog.Logger, components ...Component) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{logger: logger, components: components}
}

// Start brings every component up in order, each against the same
// deadline context. On the first failure, it stops every component
// already started (in reverse order) before returning the failure.
func (o *Orchestrator) Start(deadline context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, c := range o.components {
		o.logger.Info("orchestrator: starting component", "component", c.Name())

		done := make(chan error, 1)
		go func(c Component) { done <- c.Start(deadline) }(c)

		select {
		case err := <-done:
			if err != nil {
				o.logger.Error("orchestrator: component failed to start", "component", c.Name(), "error", err)
				o.stopStartedLocked(context.Background())
				return fmt.Errorf("orchestrator: %s: %w", c.Name(), err)
			}
		case <-deadline.Done():
			o.logger.Error("orchestrator: component missed start deadline", "component", c.Name())
			o.stopStartedLocked(context.Background())
			return fmt.Errorf("orchestrator: %s: %w", c.Name(), deadline.Err())
		}

		o.started = append(o.started, c)
		o.logger.Info("orchestrator: component ready", "component", c.Name())
	}
	return nil
}

// Stop stops every started component in reverse order. Idempotent: a
// second call is a no-op.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return nil
	}
	o.stopped = true
	return o.stopStartedLocked(ctx)
}

// stopStartedLocked must be called with mu held. It stops every
// component in o.started, in reverse order, collecting (not short
// circuiting on) individual stop errors.
func (o *Orchestrator) stopStartedLocked(ctx context.Context) error {
	var firstErr error
	for i := len(o.started) - 1; i >= 0; i-- {
		c := o.started[i]
		o.logger.Info("orchestrator: stopping component", "component", c.Name())
		if err := c.Stop(ctx); err != nil {
			o.logger.Error("orchestrator: component failed to stop", "component", c.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("orchestrator: %s: %w", c.Name(), err)
			}
		}
	}
	o.started = nil
	return firstErr
}

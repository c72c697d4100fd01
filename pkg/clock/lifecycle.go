package clock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Component is something with a startup and shutdown phase.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// component pairs a Component with the name used in logs and errors.
type component struct {
	name string
	c    Component
}

// Lifecycle starts components in registration order and stops them in
// reverse. A failed start rolls back the components already started, so the
// process never ends up half-booted.
type Lifecycle struct {
	mu         sync.Mutex
	components []component
	log        *slog.Logger
	started    bool
}

// NewLifecycle creates a lifecycle coordinator.
func NewLifecycle(log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{log: log.With("component", "lifecycle")}
}

// Register adds a named component. Registration order is start order.
func (l *Lifecycle) Register(name string, c Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.components = append(l.components, component{name: name, c: c})
}

// RegisterFuncs registers start/stop callbacks directly. Either may be nil.
func (l *Lifecycle) RegisterFuncs(name string, start, stop func(context.Context) error) {
	l.Register(name, funcComponent{start: start, stop: stop})
}

type funcComponent struct {
	start, stop func(context.Context) error
}

func (f funcComponent) Start(ctx context.Context) error {
	if f.start == nil {
		return nil
	}
	return f.start(ctx)
}

func (f funcComponent) Stop(ctx context.Context) error {
	if f.stop == nil {
		return nil
	}
	return f.stop(ctx)
}

// Start brings every component up in order.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("lifecycle already started")
	}

	for i, comp := range l.components {
		if err := comp.c.Start(ctx); err != nil {
			l.rollback(ctx, i)
			return fmt.Errorf("starting %s: %w", comp.name, err)
		}
		l.log.Debug("component started", "name", comp.name)
	}

	l.started = true
	return nil
}

// rollback stops the components before index failedAt, newest first.
func (l *Lifecycle) rollback(ctx context.Context, failedAt int) {
	for i := failedAt - 1; i >= 0; i-- {
		comp := l.components[i]
		if err := comp.c.Stop(ctx); err != nil {
			l.log.Warn("rollback stop failed", "name", comp.name, "error", err)
		}
	}
}

// Stop brings every component down in reverse order. All components get a
// chance to stop; errors are collected, not short-circuited.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}

	var errs []error
	for i := len(l.components) - 1; i >= 0; i-- {
		comp := l.components[i]
		if err := comp.c.Stop(ctx); err != nil {
			l.log.Warn("component stop failed", "name", comp.name, "error", err)
			errs = append(errs, fmt.Errorf("stopping %s: %w", comp.name, err))
		} else {
			l.log.Debug("component stopped", "name", comp.name)
		}
	}

	l.started = false

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// IsStarted reports whether Start has completed.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

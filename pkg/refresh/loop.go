// Package refresh runs the per-service background update loops that keep
// the data cache fresh. A loop failure is logged and swallowed; nothing an
// iteration does may terminate the loop.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Loop periodically runs one service's update function. Create with
// NewLoop, then Start and Stop through the lifecycle coordinator.
type Loop struct {
	name     string
	interval time.Duration
	fn       func(context.Context) error
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a loop that runs fn every interval. The first iteration
// runs immediately on Start so the cache fills without waiting a full tick.
func NewLoop(name string, interval time.Duration, fn func(context.Context) error, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.With("loop", name),
	}
}

// Start spawns the loop goroutine. The passed context only gates startup;
// cancellation happens through Stop.
func (l *Loop) Start(_ context.Context) error {
	if l.done != nil {
		return fmt.Errorf("loop %s already started", l.name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(ctx)
	l.log.Info("refresh loop started", "interval", l.interval)
	return nil
}

// Stop cancels the loop and waits for it to acknowledge. When the loop does
// not finish before ctx's deadline it is abandoned: shutdown proceeds and
// the goroutine is left to exit on its own.
func (l *Loop) Stop(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()

	select {
	case <-l.done:
		l.log.Info("refresh loop stopped")
		return nil
	case <-ctx.Done():
		l.log.Warn("refresh loop did not acknowledge cancellation, abandoning")
		return fmt.Errorf("loop %s did not stop in time", l.name)
	}
}

// run is the loop body. It survives errors and panics alike; cancellation
// is observed at the sleep boundary and, via ctx, inside fetch calls.
func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.iterate(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// iterate runs fn once, containing every failure mode.
func (l *Loop) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("refresh iteration panicked", "panic", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}
	if err := l.fn(ctx); err != nil {
		l.log.Warn("refresh iteration failed", "error", err)
	}
}

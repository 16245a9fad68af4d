package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxInFlight = 1024

// detachedRunner launches fire-and-forget work that must never block or fail
// the caller. Tasks get a fresh background context with their own deadline so
// nothing from the originating request outlives it. At most maxInFlight tasks
// run at once; work submitted beyond that is dropped and logged.
type detachedRunner struct {
	wg      sync.WaitGroup
	slots   chan struct{}
	dropped atomic.Uint64
	timeout time.Duration
	logger  *slog.Logger
}

func newDetachedRunner(timeout time.Duration, maxInFlight int, logger *slog.Logger) *detachedRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &detachedRunner{
		slots:   make(chan struct{}, maxInFlight),
		timeout: timeout,
		logger:  logger,
	}
}

// Go runs fn in its own goroutine; errors and panics are logged with attrs.
// It reports false when every slot is busy and the task was dropped.
func (r *detachedRunner) Go(operation string, attrs []slog.Attr, fn func(ctx context.Context) error) bool {
	select {
	case r.slots <- struct{}{}:
	default:
		total := r.dropped.Add(1)
		all := make([]slog.Attr, 0, len(attrs)+2)
		all = append(all, slog.String("operation", operation), slog.Uint64("dropped_total", total))
		all = append(all, attrs...)
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "background task dropped", all...)
		return false
	}

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() { <-r.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		defer func() {
			if p := recover(); p != nil {
				r.log(ctx, operation, attrs, fmt.Errorf("panic: %v", p))
			}
		}()

		if err := fn(ctx); err != nil {
			r.log(ctx, operation, attrs, err)
		}
	}()

	return true
}

func (r *detachedRunner) log(ctx context.Context, operation string, attrs []slog.Attr, err error) {
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("operation", operation))
	all = append(all, attrs...)
	all = append(all, slog.Any("error", err))
	r.logger.LogAttrs(ctx, slog.LevelError, "background task failed", all...)
}

// Dropped returns how many tasks were refused because the runner was full
func (r *detachedRunner) Dropped() uint64 {
	return r.dropped.Load()
}

// Wait blocks until every launched task has finished
func (r *detachedRunner) Wait() {
	r.wg.Wait()
}

// Package dispatch runs best-effort side effects off the request path.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/metrics"
)

// Reporter receives side-effect failures after they have been logged.
type Reporter interface {
	Report(ctx context.Context, kind string, err error)
}

// Dispatcher runs each task on its own goroutine with a per-task timeout.
// Drain waits for in-flight tasks during shutdown.
type Dispatcher struct {
	timeout  time.Duration
	reporter Reporter
	log      zerolog.Logger

	// mu orders the closed check and wg.Add in Dispatch against Drain.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ media.TaskDispatcher = (*Dispatcher)(nil)

func NewDispatcher(timeout time.Duration, reporter Reporter, log zerolog.Logger) *Dispatcher {
	if reporter == nil {
		reporter = NoopReporter{}
	}
	return &Dispatcher{
		timeout:  timeout,
		reporter: reporter,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *Dispatcher) Dispatch(kind string, task func(ctx context.Context) error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn().Str("kind", kind).Msg("dispatcher draining, side effect dropped")
		metrics.RecordSideEffect(kind, "dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.run(kind, task)
	}()
}

func (d *Dispatcher) run(kind string, task func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, task)
	if err != nil {
		d.log.Error().Err(err).Str("kind", kind).Dur("elapsed", time.Since(start)).Msg("side effect failed")
		metrics.RecordSideEffect(kind, "error")
		d.reporter.Report(ctx, kind, err)
		return
	}
	metrics.RecordSideEffect(kind, "ok")
	d.log.Debug().Str("kind", kind).Dur("elapsed", time.Since(start)).Msg("side effect done")
}

func safeRun(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

// Drain stops accepting tasks and waits for in-flight ones or ctx, whichever ends first.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain side effects: %w", ctx.Err())
	}
}

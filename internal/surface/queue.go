package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rendis/flowdesigner/internal/logging"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// Op is one deferred call into a render surface.
type Op func(ctx context.Context) error

type queued struct {
	ctx      context.Context
	name     string
	op       Op
	enqueued time.Time
	// done receives the op's outcome; nil for fire-and-forget ops.
	done chan error
}

// Queue buffers surface operations until the surface is ready. Once ready
// returns true, operations run immediately on the caller's goroutine, even
// while a drain is still working through the backlog. Operations queued
// before readiness run in FIFO order during Drain; a failing operation is
// logged and does not stop the drain.
type Queue struct {
	ready  func() bool
	logger *slog.Logger

	mu       sync.Mutex
	pending  []*queued
	draining bool
}

// NewQueue creates a Queue gated by ready. logger may be nil.
func NewQueue(ready func() bool, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{ready: ready, logger: logger}
}

// Pending returns the number of queued operations.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Enqueue runs op now when the surface is ready, otherwise queues it and
// waits until a drain has run it or ctx is done. A failed op is reported as
// SURFACE_UNAVAILABLE. An op whose caller gave up is skipped by the drain.
func (q *Queue) Enqueue(ctx context.Context, name string, op Op) error {
	item, runNow := q.admit(ctx, name, op, true)
	if runNow {
		return surfaceError(name, q.run(ctx, name, op))
	}

	select {
	case err := <-item.done:
		return surfaceError(name, err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do is the fire-and-forget form of Enqueue: it never waits and failures are
// only logged.
func (q *Queue) Do(ctx context.Context, name string, op Op) {
	if _, runNow := q.admit(ctx, name, op, false); runNow {
		_ = q.run(ctx, name, op)
	}
}

// admit decides between running immediately and queueing. Readiness alone
// decides: FIFO holds among operations queued before readiness, later ones
// follow call order. An op queued from inside a drained op would otherwise
// wait on the drain that is running it.
func (q *Queue) admit(ctx context.Context, name string, op Op, wait bool) (*queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ready() {
		return nil, true
	}
	item := &queued{ctx: ctx, name: name, op: op, enqueued: time.Now()}
	if wait {
		item.done = make(chan error, 1)
	}
	q.pending = append(q.pending, item)
	opsQueued.Inc()
	return item, false
}

// Drain runs every queued operation in FIFO order, including operations
// queued before readiness while the drain is in progress, and returns how
// many ran. It is
// typically called once, when the surface signals readiness. A concurrent
// Drain returns 0 immediately.
func (q *Queue) Drain(ctx context.Context) int {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return 0
	}
	q.draining = true
	q.mu.Unlock()

	logger := logging.LogWith(ctx, q.logger)
	ran := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			break
		}
		item := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		opsQueued.Dec()
		queueWait.Observe(time.Since(item.enqueued).Seconds())

		if err := item.ctx.Err(); err != nil {
			opsTotal.WithLabelValues(item.name, resultSkipped).Inc()
			logger.Debug("skipping abandoned surface op", slog.String("op", item.name))
			item.finish(err)
			continue
		}
		item.finish(q.run(item.ctx, item.name, item.op))
		ran++
	}
	if ran > 0 {
		logger.Debug("surface queue drained", slog.Int("ops", ran))
	}
	return ran
}

func (i *queued) finish(err error) {
	if i.done != nil {
		i.done <- err
	}
}

// run executes one op, converting panics to errors and recording the outcome.
func (q *Queue) run(ctx context.Context, name string, op Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("surface op %s panicked: %v", name, r)
		}
		if err != nil {
			opsTotal.WithLabelValues(name, resultFailed).Inc()
			logging.LogWith(ctx, q.logger).Warn("surface op failed",
				slog.String("op", name),
				slog.String("error", err.Error()))
			return
		}
		opsTotal.WithLabelValues(name, resultOK).Inc()
	}()
	return op(ctx)
}

// surfaceError reports an op failure as SURFACE_UNAVAILABLE. Context errors
// and designer errors pass through unchanged.
func surfaceError(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var de *schema.DesignerError
	if errors.As(err, &de) {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeSurfaceUnavailable, "surface op %s failed: %s", name, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"op": name})
}

// Call runs fn through q and returns its result.
func Call[T any](ctx context.Context, q *Queue, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Enqueue(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

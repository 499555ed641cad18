package surface

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rendis/flowdesigner/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the order in which ops ran.
type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) op(name string) Op {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.ran = append(r.ran, name)
		return nil
	}
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func TestQueue_FIFOBeforeReady(t *testing.T) {
	var ready atomic.Bool
	q := NewQueue(ready.Load, nil)
	rec := &recorder{}
	ctx := context.Background()

	for _, name := range []string{"op1", "op2", "op3"} {
		q.Do(ctx, name, rec.op(name))
	}
	assert.Empty(t, rec.names())
	assert.Equal(t, 3, q.Pending())

	ready.Store(true)
	assert.Equal(t, 3, q.Drain(ctx))
	assert.Equal(t, []string{"op1", "op2", "op3"}, rec.names())
	assert.Zero(t, q.Pending())
}

func TestQueue_RunsImmediatelyWhenReady(t *testing.T) {
	q := NewQueue(func() bool { return true }, nil)
	rec := &recorder{}

	require.NoError(t, q.Enqueue(context.Background(), "now", rec.op("now")))
	assert.Equal(t, []string{"now"}, rec.names())
	assert.Zero(t, q.Pending())
}

func TestQueue_EnqueueWaitsForDrain(t *testing.T) {
	var ready atomic.Bool
	q := NewQueue(ready.Load, nil)
	rec := &recorder{}
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, "waiting", rec.op("waiting")) }()

	require.Eventually(t, func() bool { return q.Pending() == 1 }, time.Second, time.Millisecond)
	ready.Store(true)
	q.Drain(ctx)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not return after drain")
	}
	assert.Equal(t, []string{"waiting"}, rec.names())
}

func TestQueue_FailureDoesNotStopDrain(t *testing.T) {
	var ready atomic.Bool
	q := NewQueue(ready.Load, nil)
	rec := &recorder{}
	ctx := context.Background()

	failedBefore := testutil.ToFloat64(opsTotal.WithLabelValues("broken", resultFailed))

	q.Do(ctx, "first", rec.op("first"))
	q.Do(ctx, "broken", func(context.Context) error { return errors.New("boom") })
	q.Do(ctx, "panics", func(context.Context) error { panic("kaboom") })
	q.Do(ctx, "last", rec.op("last"))

	ready.Store(true)
	assert.Equal(t, 4, q.Drain(ctx))
	assert.Equal(t, []string{"first", "last"}, rec.names())
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(opsTotal.WithLabelValues("broken", resultFailed)))
}

func TestQueue_FailureIsSurfaceUnavailable(t *testing.T) {
	q := NewQueue(func() bool { return true }, nil)

	err := q.Enqueue(context.Background(), "read", func(context.Context) error {
		return errors.New("surface gone")
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeSurfaceUnavailable))

	err = q.Enqueue(context.Background(), "lookup", func(context.Context) error {
		return schema.NewError(schema.ErrCodeNotFound, "no such node")
	})
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestQueue_SkipsAbandonedOps(t *testing.T) {
	var ready atomic.Bool
	q := NewQueue(ready.Load, nil)
	rec := &recorder{}

	skippedBefore := testutil.ToFloat64(opsTotal.WithLabelValues("abandoned", resultSkipped))

	ctx, cancel := context.WithCancel(context.Background())
	q.Do(ctx, "abandoned", rec.op("abandoned"))
	q.Do(context.Background(), "kept", rec.op("kept"))
	cancel()

	ready.Store(true)
	assert.Equal(t, 1, q.Drain(context.Background()))
	assert.Equal(t, []string{"kept"}, rec.names())
	assert.Equal(t, skippedBefore+1, testutil.ToFloat64(opsTotal.WithLabelValues("abandoned", resultSkipped)))
}

func TestQueue_EnqueueHonorsContext(t *testing.T) {
	q := NewQueue(func() bool { return false }, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, "never", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_EnqueueInsideDrainRunsImmediately(t *testing.T) {
	var ready atomic.Bool
	q := NewQueue(ready.Load, nil)
	rec := &recorder{}
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		errc <- q.Enqueue(ctx, "outer", func(ctx context.Context) error {
			if err := q.Enqueue(ctx, "inner", rec.op("inner")); err != nil {
				return err
			}
			return rec.op("outer")(ctx)
		})
	}()
	require.Eventually(t, func() bool { return q.Pending() == 1 }, time.Second, time.Millisecond)

	ready.Store(true)
	drained := make(chan int, 1)
	go func() { drained <- q.Drain(ctx) }()

	select {
	case n := <-drained:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("drain blocked on an op enqueued from inside it")
	}
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"inner", "outer"}, rec.names())
	assert.Zero(t, q.Pending())
}

func TestQueue_PostReadinessOpsDoNotWaitForDrain(t *testing.T) {
	var ready atomic.Bool
	q := NewQueue(ready.Load, nil)
	rec := &recorder{}
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	q.Do(ctx, "slow", func(ctx context.Context) error {
		close(started)
		<-release
		return rec.op("slow")(ctx)
	})
	q.Do(ctx, "queued", rec.op("queued"))

	ready.Store(true)
	drained := make(chan int, 1)
	go func() { drained <- q.Drain(ctx) }()
	<-started

	require.NoError(t, q.Enqueue(ctx, "post", rec.op("post")))
	assert.Equal(t, []string{"post"}, rec.names(), "post-readiness op runs on the caller while the drain is busy")

	close(release)
	assert.Equal(t, 2, <-drained)
	assert.Equal(t, []string{"post", "slow", "queued"}, rec.names())
}

func TestCall_ReturnsValue(t *testing.T) {
	q := NewQueue(func() bool { return true }, nil)

	v, err := Call(context.Background(), q, "answer", func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Call(context.Background(), q, "answer", func(context.Context) (int, error) { return 7, errors.New("no") })
	require.Error(t, err)
	assert.Zero(t, v)
}

package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu    sync.Mutex
	kinds []string
	errs  []error
}

func (r *recordingReporter) Report(_ context.Context, kind string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.errs = append(r.errs, err)
}

func TestDispatch_RunsInBackground(t *testing.T) {
	d := NewDispatcher(time.Second, nil, zerolog.Nop())
	release := make(chan struct{})
	var ran bool

	d.Dispatch("cache_invalidation", func(ctx context.Context) error {
		<-release
		ran = true
		return nil
	})
	close(release)

	require.NoError(t, d.Drain(context.Background()))
	assert.True(t, ran)
}

func TestDispatch_FailuresAndPanicsAreReported(t *testing.T) {
	reporter := &recordingReporter{}
	d := NewDispatcher(time.Second, reporter, zerolog.Nop())

	d.Dispatch("notify_ingested", func(ctx context.Context) error { return errors.New("webhook down") })
	d.Dispatch("delete_staged_raw", func(ctx context.Context) error { panic("boom") })
	require.NoError(t, d.Drain(context.Background()))

	assert.ElementsMatch(t, []string{"notify_ingested", "delete_staged_raw"}, reporter.kinds)
	for _, err := range reporter.errs {
		assert.Error(t, err)
	}
}

func TestDispatch_TaskContextHasTimeout(t *testing.T) {
	d := NewDispatcher(20*time.Millisecond, nil, zerolog.Nop())
	var taskErr error

	d.Dispatch("slow", func(ctx context.Context) error {
		<-ctx.Done()
		taskErr = ctx.Err()
		return taskErr
	})
	require.NoError(t, d.Drain(context.Background()))
	assert.ErrorIs(t, taskErr, context.DeadlineExceeded)
}

func TestDrain_RejectsNewTasksAndHonoursDeadline(t *testing.T) {
	d := NewDispatcher(time.Minute, nil, zerolog.Nop())
	block := make(chan struct{})
	defer close(block)
	d.Dispatch("stuck", func(ctx context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Drain(ctx), context.DeadlineExceeded)

	var late bool
	d.Dispatch("late", func(ctx context.Context) error {
		late = true
		return nil
	})
	assert.False(t, late)
}

func TestDrain_NoTaskRunsAfterDrainReturns(t *testing.T) {
	d := NewDispatcher(time.Second, nil, zerolog.Nop())
	var finished atomic.Int64

	var senders sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			<-start
			for j := 0; j < 20; j++ {
				d.Dispatch("cache_invalidation", func(ctx context.Context) error {
					finished.Add(1)
					return nil
				})
			}
		}()
	}
	close(start)

	require.NoError(t, d.Drain(context.Background()))
	settled := finished.Load()
	senders.Wait()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, finished.Load())
}

func TestInitSentry_EmptyDSN(t *testing.T) {
	reporter, err := InitSentry("", "test", "")
	require.NoError(t, err)
	assert.Nil(t, reporter)
}

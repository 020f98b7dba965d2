package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueueRunsSubmittedTasks(t *testing.T) {
	q := NewTaskQueue(2, 10, time.Second, nil)
	q.Start()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, q.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
}

func TestTaskQueueDropsWhenFull(t *testing.T) {
	q := NewTaskQueue(1, 1, time.Second, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	q.Start()

	require.True(t, q.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.True(t, q.Submit("buffered", func(context.Context) error { return nil }))

	assert.False(t, q.Submit("overflow", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestTaskQueueSurvivesFailuresAndPanics(t *testing.T) {
	q := NewTaskQueue(1, 10, time.Second, nil)
	q.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	q.Submit("fails", func(context.Context) error { return errors.New("smtp down") })
	q.Submit("panics", func(context.Context) error { panic("boom") })
	q.Submit("after", func(context.Context) error { wg.Done(); return nil })

	wg.Wait()
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestTaskContextIsDetachedWithTimeout(t *testing.T) {
	q := NewTaskQueue(1, 1, 50*time.Millisecond, nil)
	q.Start()

	done := make(chan error, 1)
	q.Submit("slow", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})

	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestSubmitAfterShutdown(t *testing.T) {
	q := NewTaskQueue(1, 1, time.Second, nil)
	q.Start()
	require.NoError(t, q.Shutdown(context.Background()))

	assert.False(t, q.Submit("late", func(context.Context) error { return nil }))
	assert.ErrorIs(t, q.Shutdown(context.Background()), ErrQueueClosed)
}

type countingSweeper struct{ calls atomic.Int32 }

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	target := &countingSweeper{}
	s := NewSweeper(target, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

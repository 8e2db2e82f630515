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

func TestPoolProcessesSubmittedWork(t *testing.T) {
	var processed atomic.Int64
	var wg sync.WaitGroup

	pool := NewPool(2, 16, func(_ context.Context, n int) error {
		processed.Add(int64(n))
		wg.Done()
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	wg.Add(3)
	for i := 1; i <= 3; i++ {
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()

	assert.Equal(t, int64(6), processed.Load())
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.Submitted)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)
}

func TestPoolDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// First item occupies the single worker, second fills the queue.
	require.NoError(t, pool.Submit(1))
	// The worker may or may not have picked up the first item yet; keep
	// submitting until the queue rejects.
	var dropped bool
	for i := 0; i < 3; i++ {
		if err := pool.Submit(i); errors.Is(err, ErrQueueFull) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped, "expected a submission to be dropped")
	assert.Greater(t, pool.Stats().Dropped, int64(0))

	close(block)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPoolCountsFailures(t *testing.T) {
	var wg sync.WaitGroup
	pool := NewPool(1, 4, func(_ context.Context, fail bool) error {
		defer wg.Done()
		if fail {
			return errors.New("downstream unavailable")
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	wg.Add(2)
	require.NoError(t, pool.Submit(true))
	require.NoError(t, pool.Submit(false))
	wg.Wait()

	require.NoError(t, pool.Stop(time.Second))
	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPoolDoubleStart(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPoolStopIdempotent(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))
	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}

func TestNewPoolNilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewPool[int](1, 1, nil)
	})
}

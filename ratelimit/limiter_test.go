package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/automaton-io/automaton/model"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireNeverExceedsLimit(t *testing.T) {
	limiter := NewLimiter(15, time.Minute)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.TryAcquire(); err == nil {
				granted.Add(1)
			} else {
				require.IsType(t, model.RateLimitError{}, err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(15), granted.Load())
	require.Equal(t, 15, limiter.InFlight())
}

func TestSlotsFreeOnWindowRollover(t *testing.T) {
	limiter := NewLimiter(2, 100*time.Millisecond)

	require.NoError(t, limiter.TryAcquire())
	require.NoError(t, limiter.TryAcquire())
	require.Error(t, limiter.TryAcquire())

	time.Sleep(120 * time.Millisecond)
	require.NoError(t, limiter.TryAcquire())
}

func TestAcquireBlocksUntilSlotFrees(t *testing.T) {
	limiter := NewLimiter(1, 100*time.Millisecond)
	require.NoError(t, limiter.TryAcquire())

	start := time.Now()
	err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	require.NoError(t, limiter.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := limiter.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentAcquireRespectsCapUnderBlocking(t *testing.T) {
	window := 150 * time.Millisecond
	limiter := NewLimiter(5, window)

	var wg sync.WaitGroup
	grantTimes := make(chan time.Time, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := limiter.Acquire(ctx); err == nil {
				grantTimes <- time.Now()
			}
		}()
	}
	wg.Wait()
	close(grantTimes)

	var times []time.Time
	for ts := range grantTimes {
		times = append(times, ts)
	}
	require.Len(t, times, 20)
	// no window of length W may contain more than 5 grants; measure a
	// slightly shorter window to absorb scheduling jitter between the
	// grant and the observation
	observed := window - 30*time.Millisecond
	for _, anchor := range times {
		count := 0
		for _, ts := range times {
			if !ts.Before(anchor) && ts.Before(anchor.Add(observed)) {
				count++
			}
		}
		require.LessOrEqual(t, count, 5)
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/automaton-io/automaton/model"
)

// Limiter bounds calls to at most limit per rolling window. It is shared
// by every worker; all state is guarded by the mutex. Slots free only by
// window rollover, there is no release call.
type Limiter struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time
	now   func() time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// TryAcquire takes a slot if one is free, otherwise fails fast with
// model.RateLimitError.
func (l *Limiter) TryAcquire() error {
	if _, ok := l.tryAcquire(); !ok {
		return model.RateLimitError{Limit: l.limit, Window: l.window.String()}
	}
	return nil
}

// Acquire blocks until a slot frees or ctx is done. This is the primary
// backpressure point throttling AI spend during event bursts.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire prunes expired calls and either records a new call or
// returns how long until the oldest recorded call leaves the window.
func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	l.calls = l.calls[i:]
	if len(l.calls) < l.limit {
		l.calls = append(l.calls, now)
		return 0, true
	}
	if len(l.calls) == 0 {
		// limit configured to zero, nothing will ever free up
		return l.window, false
	}
	wait := l.calls[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// InFlight returns the number of calls currently counted in the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for _, c := range l.calls {
		if c.After(cutoff) {
			n++
		}
	}
	return n
}

func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

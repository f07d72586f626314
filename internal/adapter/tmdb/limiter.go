package tmdb

import (
	"context"
	"sync"
	"time"
)

// slidingWindow caps the number of calls admitted per rolling time window,
// on top of the minimum inter-call spacing enforced by rate.Limiter.
// Expired timestamps are evicted from the front before admitting a call;
// at capacity the caller sleeps out the remainder of the window.
type slidingWindow struct {
	mu    sync.Mutex
	limit int
	span  time.Duration
	calls []time.Time

	// Injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newSlidingWindow(limit int, span time.Duration) *slidingWindow {
	return &slidingWindow{
		limit: limit,
		span:  span,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Wait blocks until a call slot is available or the context is done.
func (w *slidingWindow) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		cutoff := now.Add(-w.span)

		evict := 0
		for evict < len(w.calls) && !w.calls[evict].After(cutoff) {
			evict++
		}
		w.calls = w.calls[evict:]

		if len(w.calls) < w.limit {
			w.calls = append(w.calls, now)
			w.mu.Unlock()
			return nil
		}

		wait := w.span - now.Sub(w.calls[0])
		w.mu.Unlock()

		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

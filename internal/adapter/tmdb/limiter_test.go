package tmdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAdmitsUnderLimit(t *testing.T) {
	clock := time.Unix(1000, 0)
	slept := 0

	w := newSlidingWindow(2, 10*time.Second)
	w.now = func() time.Time { return clock }
	w.sleep = func(_ context.Context, d time.Duration) error {
		slept++
		clock = clock.Add(d)
		return nil
	}

	require.NoError(t, w.Wait(context.Background()))
	require.NoError(t, w.Wait(context.Background()))
	assert.Zero(t, slept)
}

func TestSlidingWindowSleepsAtCapacity(t *testing.T) {
	clock := time.Unix(1000, 0)
	var slept []time.Duration

	w := newSlidingWindow(2, 10*time.Second)
	w.now = func() time.Time { return clock }
	w.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	require.NoError(t, w.Wait(context.Background()))
	clock = clock.Add(4 * time.Second)
	require.NoError(t, w.Wait(context.Background()))

	// Third call finds the window full; it sleeps until the first call
	// ages out, then is admitted.
	require.NoError(t, w.Wait(context.Background()))
	require.Len(t, slept, 1)
	assert.Equal(t, 6*time.Second, slept[0])
}

func TestSlidingWindowEvictsExpired(t *testing.T) {
	clock := time.Unix(1000, 0)
	slept := 0

	w := newSlidingWindow(2, 10*time.Second)
	w.now = func() time.Time { return clock }
	w.sleep = func(_ context.Context, d time.Duration) error {
		slept++
		clock = clock.Add(d)
		return nil
	}

	require.NoError(t, w.Wait(context.Background()))
	require.NoError(t, w.Wait(context.Background()))

	// After the span passes both slots are free again.
	clock = clock.Add(11 * time.Second)
	require.NoError(t, w.Wait(context.Background()))
	require.NoError(t, w.Wait(context.Background()))
	assert.Zero(t, slept)
}

func TestSlidingWindowContextCancel(t *testing.T) {
	clock := time.Unix(1000, 0)

	w := newSlidingWindow(1, 10*time.Second)
	w.now = func() time.Time { return clock }
	w.sleep = sleepCtx

	require.NoError(t, w.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.Canceled)
}

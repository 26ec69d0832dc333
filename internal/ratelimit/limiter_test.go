package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstAcquireIsImmediate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	l := New(time.Second, clock)

	waited, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, waited)
	assert.Equal(t, clock.Now(), l.LastDispatch())
}

func TestLimiter_SecondAcquireWaitsOneInterval(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	l := New(time.Second, clock)

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan time.Duration, 1)
	go func() {
		waited, err := l.Acquire(context.Background())
		assert.NoError(t, err)
		done <- waited
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case <-done:
		t.Fatal("second acquire returned before the interval elapsed")
	default:
	}

	clock.Advance(time.Second)

	select {
	case waited := <-done:
		assert.Equal(t, time.Second, waited)
	case <-time.After(5 * time.Second):
		t.Fatal("second acquire did not return")
	}
	assert.Equal(t, start.Add(time.Second), l.LastDispatch())
}

func TestLimiter_AcquireAfterIdleIsImmediate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(time.Second, clock)

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	clock.Advance(3 * time.Second)

	waited, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, waited)
}

func TestLimiter_ConcurrentCallersGetDistinctSlots(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	l := New(time.Second, clock)

	const callers = 4
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		times []time.Time
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Acquire(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			times = append(times, clock.Now())
			mu.Unlock()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// One caller passes immediately; the rest wait on timers.
	require.NoError(t, clock.BlockUntilContext(ctx, callers-1))
	for i := 0; i < callers-1; i++ {
		clock.Advance(time.Second)
	}
	wg.Wait()

	assert.Len(t, times, callers)
	assert.Equal(t, start.Add(time.Duration(callers-1)*time.Second), l.LastDispatch(),
		"each caller reserved its own one-second slot")
}

func TestLimiter_ContextCancelledWhileWaiting(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(time.Second, clock)

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx)
		errCh <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
}

func TestLimiter_CancelledWaitRestoresLastDispatch(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	l := New(time.Second, clock)

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, start, l.LastDispatch())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx)
		errCh <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, start.Add(time.Second), l.LastDispatch())
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
	assert.Equal(t, start, l.LastDispatch(), "released slot is no longer reported")
}

func TestLimiter_CancelledWaitKeepsLaterReservation(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	l := New(time.Second, clock)

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx)
		errCh <- err
	}()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	laterCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(context.Background())
		laterCh <- err
	}()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 2))
	require.Equal(t, start.Add(2*time.Second), l.LastDispatch())

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
	assert.Equal(t, start.Add(2*time.Second), l.LastDispatch())

	clock.Advance(2 * time.Second)
	select {
	case err := <-laterCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("later caller never dispatched")
	}
}

func TestLimiter_AlreadyCancelled(t *testing.T) {
	l := New(time.Second, clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, l.LastDispatch().IsZero())
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, nil)
	assert.Equal(t, DefaultInterval, l.Interval())
}

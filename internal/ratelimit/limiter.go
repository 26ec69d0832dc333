// Package ratelimit spaces outbound provider requests.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// DefaultInterval is the Nominatim usage policy: at most one request per second.
const DefaultInterval = time.Second

// Limiter is a global gate allowing one dispatch per interval. Each Acquire
// reads the clock and reserves the next free slot under mu, so concurrent
// callers receive distinct slots at least one interval apart.
type Limiter struct {
	limiter  *rate.Limiter
	clock    clockwork.Clock
	interval time.Duration

	mu           sync.Mutex
	lastDispatch time.Time
}

// New creates a Limiter. A non-positive interval uses DefaultInterval; a nil
// clock uses the real clock.
func New(interval time.Duration, clock clockwork.Clock) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		clock:    clock,
		interval: interval,
	}
}

// Interval returns the minimum spacing between dispatches.
func (l *Limiter) Interval() time.Duration { return l.interval }

// Acquire blocks until the caller may dispatch and returns how long it
// waited. If ctx ends first the reserved slot is released and ctx.Err() is
// returned.
func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	now := l.clock.Now()
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		l.mu.Unlock()
		// Unreachable with burst 1 and n 1.
		return 0, context.DeadlineExceeded
	}
	delay := r.DelayFrom(now)
	prev, slot := l.lastDispatch, now.Add(delay)
	if slot.After(prev) {
		l.lastDispatch = slot
	}
	l.mu.Unlock()

	if delay <= 0 {
		return 0, nil
	}

	timer := l.clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		l.release(r, prev, slot)
		return l.clock.Since(now), ctx.Err()
	case <-timer.Chan():
		return delay, nil
	}
}

// release hands an unused slot back to the rate limiter. lastDispatch only
// rewinds when no later caller has reserved after slot.
func (l *Limiter) release(r *rate.Reservation, prev, slot time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.CancelAt(l.clock.Now())
	if l.lastDispatch.Equal(slot) {
		l.lastDispatch = prev
	}
}

// LastDispatch returns the time of the most recently reserved dispatch slot,
// or the zero time if none has been reserved.
func (l *Limiter) LastDispatch() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastDispatch
}

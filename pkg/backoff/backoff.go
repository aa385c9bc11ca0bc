// Package backoff gates recovery attempts with exponential delays.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff tracks consecutive failures per key and when the next attempt is allowed.
type Backoff struct {
	mu        sync.Mutex
	keys      map[string]*state
	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time
}

type state struct {
	failures    int
	nextAllowed time.Time
}

// New creates a backoff with delays of base·2^(n-1), capped at max, plus up to 10% jitter.
func New(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{
		keys:      make(map[string]*state),
		baseDelay: base,
		maxDelay:  max,
		now:       time.Now,
	}
}

// Ready reports whether an attempt for key is allowed now.
func (b *Backoff) Ready(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.keys[key]
	return !ok || !b.now().Before(st.nextAllowed)
}

// Wait blocks until an attempt for key is allowed or ctx is done.
func (b *Backoff) Wait(ctx context.Context, key string) error {
	b.mu.Lock()
	st, ok := b.keys[key]
	var until time.Duration
	if ok {
		until = st.nextAllowed.Sub(b.now())
	}
	b.mu.Unlock()

	if until <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(until)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordFailure extends the delay for key and returns it.
func (b *Backoff) RecordFailure(key string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.keys[key]
	if !ok {
		st = &state{}
		b.keys[key] = st
	}
	st.failures++
	delay := b.delay(st.failures)
	st.nextAllowed = b.now().Add(delay)
	return delay
}

// RecordSuccess steps the failure count back by one, clearing the delay when it reaches zero.
func (b *Backoff) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.keys[key]
	if !ok {
		return
	}
	if st.failures > 0 {
		st.failures--
	}
	if st.failures == 0 {
		delete(b.keys, key)
	}
}

// State returns the failure count and next allowed time for key.
func (b *Backoff) State(key string) (failures int, nextAllowed time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.keys[key]; ok {
		return st.failures, st.nextAllowed
	}
	return 0, time.Time{}
}

func (b *Backoff) delay(failures int) time.Duration {
	d := time.Duration(float64(b.baseDelay) * math.Pow(2, float64(failures-1)))
	if d > b.maxDelay || d < 0 {
		d = b.maxDelay
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(d))
	return d + jitter
}

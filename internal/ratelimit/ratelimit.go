// Package ratelimit implements a fixed-window, in-memory request counter.
// It is a single-process, best-effort limiter: no durability, no
// cross-instance coordination.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// sweepThreshold bounds map growth: once the bucket map passes this size,
// Allow opportunistically drops buckets whose window has ended.
const sweepThreshold = 65536

type bucket struct {
	count   int
	resetAt time.Time
}

// Result reports the caller's remaining quota in the active window.
type Result struct {
	Remaining int
	ResetAt   time.Time
}

// LimitError is returned when a key has exhausted its window.
type LimitError struct {
	ResetAt time.Time
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (e *LimitError) RetryAfter(now time.Time) int {
	secs := int(e.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts requests per key over fixed windows. Safe for concurrent
// use; the per-key read-modify-write happens under one lock.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLimiter creates an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// NewLimiterWithClock creates a limiter with an injectable clock for tests.
func NewLimiterWithClock(now func() time.Time) *Limiter {
	l := NewLimiter()
	l.now = now
	return l
}

// Allow records one request for key. On the first request of a window the
// count starts at 1; within an active window the count increments until it
// reaches limit, after which Allow fails with *LimitError carrying the
// window's reset time.
func (l *Limiter) Allow(key string, limit int, window time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[key]
	if !ok || !b.resetAt.After(now) {
		if len(l.buckets) >= sweepThreshold {
			l.sweepLocked(now)
		}
		b = &bucket{count: 1, resetAt: now.Add(window)}
		l.buckets[key] = b
		return Result{Remaining: limit - 1, ResetAt: b.resetAt}, nil
	}

	if b.count >= limit {
		return Result{Remaining: 0, ResetAt: b.resetAt}, &LimitError{ResetAt: b.resetAt}
	}

	b.count++
	return Result{Remaining: limit - b.count, ResetAt: b.resetAt}, nil
}

func (l *Limiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, k)
		}
	}
}

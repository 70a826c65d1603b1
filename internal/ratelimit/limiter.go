// Package ratelimit implements a per-client token bucket, used by the Edge
// Gateway for both the global rate limit and the stricter upload-endpoint
// limit.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per client key (IP address), evicting
// idle buckets so memory does not grow unbounded under a long-lived
// process with many distinct clients.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSwept time.Time
}

type bucket struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// New creates a Limiter allowing maxRequests per window.
func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	perSecond := rate.Limit(float64(maxRequests) / window.Seconds())

	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    perSecond,
		burst:   maxRequests,
		idleTTL: window * 10,
	}
}

// Allow reports whether the request for the given key may proceed,
// consuming a token from its bucket if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastUse = now

	l.maybeSweep(now)

	return b.limiter.Allow()
}

// maybeSweep evicts buckets untouched for longer than idleTTL. Called with
// the lock held; cheap no-op unless enough time has passed since the last
// sweep.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSwept) < l.idleTTL {
		return
	}
	l.lastSwept = now
	for key, b := range l.buckets {
		if now.Sub(b.lastUse) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

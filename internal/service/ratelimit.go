package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is an in-memory per-key rate limiter backed by token buckets.
// It is safe for concurrent use. Stale keys are removed in the background
// until Stop is called.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idle     time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// NewRateLimiter allows burst events per key, refilling at perSecond.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		done:     make(chan struct{}),
	}
	go rl.cleanup(5 * time.Minute)
	return rl
}

// Allow reports whether key may proceed and consumes one token if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.last = now
	return e.limiter.AllowN(now, 1)
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.sweep(time.Now().Add(-rl.idle))
		}
	}
}

func (rl *RateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.limiters {
		if e.last.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

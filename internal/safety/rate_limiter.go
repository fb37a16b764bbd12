// Package safety throttles calls to external services.
package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	name       string
	capacity   float64 // maximum number of tokens
	tokens     float64
	refillRate float64 // tokens added per second
	lastRefill time.Time
	now        func() time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a limiter that starts full. A non-positive
// refillRate disables limiting.
func NewRateLimiter(name string, capacity int, refillRate float64) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		name:       name,
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Allow checks if an operation is allowed under the rate limit
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN takes n tokens if they are available.
func (rl *RateLimiter) AllowN(n int) bool {
	if rl == nil || rl.refillRate <= 0 {
		return true
	}
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()
	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rl.Allow() {
			return nil
		}

		timer := time.NewTimer(rl.waitTime(1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refillTokens must be called with the mutex held.
func (rl *RateLimiter) refillTokens() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now
}

func (rl *RateLimiter) waitTime(n int) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()
	missing := float64(n) - rl.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / rl.refillRate * float64(time.Second))
}

// GetStats returns current statistics about the rate limiter
func (rl *RateLimiter) GetStats() RateLimiterStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()
	return RateLimiterStats{
		Name:       rl.name,
		Capacity:   int(rl.capacity),
		Tokens:     rl.tokens,
		RefillRate: rl.refillRate,
	}
}

// RateLimiterStats holds statistics about a rate limiter
type RateLimiterStats struct {
	Name       string
	Capacity   int
	Tokens     float64
	RefillRate float64
}

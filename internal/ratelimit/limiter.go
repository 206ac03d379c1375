// Package ratelimit provides per-key request limits.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more event is allowed for a key
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter implements a simple in-memory rate limiter using a sliding window
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	window   time.Duration
	maxReqs  int
	now      func() time.Time
}

// NewMemoryLimiter creates a new in-memory limiter. Call Run to prune idle keys.
func NewMemoryLimiter(window time.Duration, maxReqs int) *MemoryLimiter {
	return &MemoryLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
		now:      time.Now,
	}
}

// Allow checks if a request is allowed for the given key
func (rl *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	filtered := inWindow(rl.requests[key], now.Add(-rl.window))
	if len(filtered) >= rl.maxReqs {
		rl.requests[key] = filtered
		return false, nil
	}

	rl.requests[key] = append(filtered, now)
	return true, nil
}

// Run prunes idle keys every interval until ctx is done
func (rl *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *MemoryLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, reqs := range rl.requests {
		filtered := inWindow(reqs, cutoff)
		if len(filtered) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = filtered
		}
	}
}

func inWindow(reqs []time.Time, cutoff time.Time) []time.Time {
	filtered := make([]time.Time, 0, len(reqs))
	for _, t := range reqs {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// PhoneKey creates a rate limit key from phone number
func PhoneKey(phone string) string {
	return "phone:" + phone
}

package tools

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements a sliding window limiter for action dispatches.
// Tracks dispatches per scope key within a configurable window.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	max     int
	window  time.Duration
}

// NewRateLimiter creates a limiter allowing max dispatches per minute.
// Pass 0 to disable rate limiting.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	if maxPerMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		max:     maxPerMinute,
		window:  time.Minute,
	}
}

// Allow checks whether a dispatch is allowed for the given scope key.
// Returns nil if allowed, or an error describing the limit.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	entries := rl.windows[key]
	start := 0
	for start < len(entries) && entries[start].Before(cutoff) {
		start++
	}
	entries = entries[start:]

	if len(entries) >= rl.max {
		return fmt.Errorf("action rate limit exceeded: %d dispatches/minute for scope %s", rl.max, key)
	}

	rl.windows[key] = append(entries, now)
	return nil
}

// Cleanup removes stale entries. Call periodically to bound memory.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for key, entries := range rl.windows {
		start := 0
		for start < len(entries) && entries[start].Before(cutoff) {
			start++
		}
		if start == len(entries) {
			delete(rl.windows, key)
		} else {
			rl.windows[key] = entries[start:]
		}
	}
}

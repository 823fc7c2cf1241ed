// Package ratelimit protects the scoring-backed endpoints with a fixed-window
// per client IP limit. Each window admits at most Limit requests; the counter
// resets when the window rolls over.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the current window ends, rounded up to whole
// seconds and never less than one.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter admits or refuses one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// windowStart aligns now to the window grid so every instance sharing a
// backend agrees on window boundaries.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func result(count, limit int, resetAt time.Time) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

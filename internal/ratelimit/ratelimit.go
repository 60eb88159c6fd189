// Package ratelimit provides fixed-window request limiters keyed by client.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, rounded up to a
// whole second and never below one.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

// Limiter decides whether a client may proceed in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

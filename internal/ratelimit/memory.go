package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// window is an immutable snapshot; updates swap in a new one via CAS.
type window struct {
	start time.Time
	count int
}

type client struct {
	state atomic.Pointer[window]
}

// retired marks a client Prune has claimed. Allow never counts into it.
var retired = &window{}

// Memory is an in-process fixed-window limiter. Each client key maps to a
// window pointer updated with compare-and-swap, so no lock is held across
// requests.
type Memory struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	clients sync.Map // string -> *client
}

// Option configures a Memory limiter.
type Option func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns a limiter allowing limit requests per window per key.
func NewMemory(limit int, per time.Duration, opts ...Option) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if per <= 0 {
		per = DefaultWindow
	}
	m := &Memory{limit: limit, window: per, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	now := m.now()

	c := m.client(key)

	for {
		cur := c.state.Load()
		if cur == retired {
			m.clients.CompareAndDelete(key, c)
			c = m.client(key)
			continue
		}

		var next *window
		switch {
		case cur == nil || !now.Before(cur.start.Add(m.window)):
			next = &window{start: now, count: 1}
		case cur.count >= m.limit:
			return Result{
				Allowed:   false,
				Limit:     m.limit,
				Remaining: 0,
				ResetAt:   cur.start.Add(m.window),
			}, nil
		default:
			next = &window{start: cur.start, count: cur.count + 1}
		}

		if c.state.CompareAndSwap(cur, next) {
			return Result{
				Allowed:   true,
				Limit:     m.limit,
				Remaining: m.limit - next.count,
				ResetAt:   next.start.Add(m.window),
			}, nil
		}
	}
}

func (m *Memory) client(key string) *client {
	v, ok := m.clients.Load(key)
	if !ok {
		v, _ = m.clients.LoadOrStore(key, &client{})
	}
	return v.(*client)
}

// Prune drops clients whose window ended before now and returns how many
// were removed. A client is retired before it is deleted, so a concurrent
// Allow that already holds it moves to a fresh entry instead of counting
// into a dropped one.
func (m *Memory) Prune(now time.Time) int {
	removed := 0
	m.clients.Range(func(k, v any) bool {
		c := v.(*client)
		w := c.state.Load()
		if w == retired || (w != nil && now.Before(w.start.Add(m.window))) {
			return true
		}
		if c.state.CompareAndSwap(w, retired) {
			m.clients.CompareAndDelete(k, v)
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of tracked clients.
func (m *Memory) Len() int {
	n := 0
	m.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RunJanitor prunes stale clients every interval until ctx is cancelled.
func (m *Memory) RunJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = m.window
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Prune(m.now()); n > 0 {
				logger.Debug("rate limiter pruned clients", "removed", n)
			}
		}
	}
}

// Package cache provides link-projection caches for the resolver: an
// in-process backend on go-cache and a shared backend on Redis.
package cache

import (
	"sync/atomic"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DefaultPrefix = "link:"
)

// counters tracks cache outcomes.
type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
	evicts atomic.Uint64
	errors atomic.Uint64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Backend string  `json:"backend"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	Evicts  uint64  `json:"evicts"`
	Errors  uint64  `json:"errors"`
	HitRate float64 `json:"hit_rate"`
	Items   int     `json:"items,omitempty"`
}

func (c *counters) snapshot(backend string) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Backend: backend,
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Evicts:  c.evicts.Load(),
		Errors:  c.errors.Load(),
		HitRate: rate,
	}
}

package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// Memory is an in-process cache. Entries live in a go-cache instance whose
// janitor removes expired items every cleanup interval.
type Memory struct {
	store *gocache.Cache
	stats counters
}

// NewMemory creates an in-process cache. defaultTTL applies when Set is
// called with a non-positive ttl.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = shortener.DefaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &Memory{store: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(_ context.Context, code string) (shortener.CacheEntry, bool, error) {
	v, ok := m.store.Get(code)
	if !ok {
		m.stats.misses.Add(1)
		return shortener.CacheEntry{}, false, nil
	}
	entry, ok := v.(shortener.CacheEntry)
	if !ok {
		m.store.Delete(code)
		m.stats.misses.Add(1)
		return shortener.CacheEntry{}, false, nil
	}
	m.stats.hits.Add(1)
	return entry, true, nil
}

func (m *Memory) Set(_ context.Context, code string, entry shortener.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.store.Set(code, entry, ttl)
	m.stats.sets.Add(1)
	return nil
}

func (m *Memory) Evict(_ context.Context, code string) error {
	m.store.Delete(code)
	m.stats.evicts.Add(1)
	return nil
}

// Ping always succeeds for the in-process backend.
func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Stats() Stats {
	s := m.stats.snapshot(BackendMemory)
	s.Items = m.store.ItemCount()
	return s
}

// Flush drops every entry.
func (m *Memory) Flush() { m.store.Flush() }

func (m *Memory) Close() error {
	m.store.Flush()
	return nil
}

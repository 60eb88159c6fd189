package shortener

import (
	"context"
	"time"
)

// nopCache always misses. It stands in when no cache backend is configured.
type nopCache struct{}

func (nopCache) Get(context.Context, string) (CacheEntry, bool, error) {
	return CacheEntry{}, false, nil
}

func (nopCache) Set(context.Context, string, CacheEntry, time.Duration) error { return nil }

func (nopCache) Evict(context.Context, string) error { return nil }

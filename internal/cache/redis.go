package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// Redis caches projections as JSON strings under prefix+code.
type Redis struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	stats      counters
}

// RedisConfig holds Redis cache settings.
type RedisConfig struct {
	Prefix     string
	DefaultTTL time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = shortener.DefaultCacheTTL
	}
	return &Redis{client: client, prefix: cfg.Prefix, defaultTTL: cfg.DefaultTTL}
}

func (r *Redis) key(code string) string { return r.prefix + code }

func (r *Redis) Get(ctx context.Context, code string) (shortener.CacheEntry, bool, error) {
	data, err := r.client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.stats.misses.Add(1)
			return shortener.CacheEntry{}, false, nil
		}
		r.stats.errors.Add(1)
		return shortener.CacheEntry{}, false, fmt.Errorf("cache get %q: %w", code, err)
	}

	var entry shortener.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.stats.errors.Add(1)
		return shortener.CacheEntry{}, false, fmt.Errorf("cache decode %q: %w", code, err)
	}

	r.stats.hits.Add(1)
	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, code string, entry shortener.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	data, err := json.Marshal(entry)
	if err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("cache encode %q: %w", code, err)
	}

	if err := r.client.Set(ctx, r.key(code), data, ttl).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("cache set %q: %w", code, err)
	}

	r.stats.sets.Add(1)
	return nil
}

func (r *Redis) Evict(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, r.key(code)).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("cache evict %q: %w", code, err)
	}
	r.stats.evicts.Add(1)
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Stats() Stats {
	return r.stats.snapshot(BackendRedis)
}

func (r *Redis) Close() error {
	return r.client.Close()
}

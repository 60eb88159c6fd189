package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// Backend is a shortener.Cache that can also report health and counters.
type Backend interface {
	shortener.Cache
	Ping(ctx context.Context) error
	Stats() Stats
	Close() error
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Redis)(nil)
)

// Options selects and configures a backend.
type Options struct {
	Backend         string
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	Prefix          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
}

// Open builds the configured backend. For Redis it verifies connectivity.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(opts.DefaultTTL, opts.CleanupInterval), nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr,
			Password:     opts.RedisPassword,
			DB:           opts.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opts.RedisAddr, err)
		}
		return NewRedis(client, RedisConfig{Prefix: opts.Prefix, DefaultTTL: opts.DefaultTTL}), nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

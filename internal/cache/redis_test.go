package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/sundayezeilo/shortlink/internal/shortener"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedis(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	backend, err := Open(ctx, Options{Backend: BackendRedis, RedisAddr: addr, Prefix: "test:link:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	c, ok := backend.(*Redis)
	require.True(t, ok)
	require.NoError(t, c.Ping(ctx))

	t.Run("miss on unknown key", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("round trips the projection with ttl", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		entry := shortener.CacheEntry{TargetURL: "https://example.com/a", ExpiresAt: &exp}
		require.NoError(t, c.Set(ctx, "abc", entry, 30*time.Second))

		got, ok, err := c.Get(ctx, "abc")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, entry.TargetURL, got.TargetURL)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, got.ExpiresAt.Equal(exp))

		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		ttl, err := client.TTL(ctx, "test:link:abc").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, 30*time.Second)
	})

	t.Run("evict removes the key", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "gone", shortener.CacheEntry{TargetURL: "https://example.com"}, time.Minute))
		require.NoError(t, c.Evict(ctx, "gone"))
		_, ok, err := c.Get(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt value is an error", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		require.NoError(t, client.Set(ctx, "test:link:bad", "{not json", time.Minute).Err())

		_, ok, err := c.Get(ctx, "bad")
		assert.Error(t, err)
		assert.False(t, ok)
		assert.GreaterOrEqual(t, c.Stats().Errors, uint64(1))
	})
}

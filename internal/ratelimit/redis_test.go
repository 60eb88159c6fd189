package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
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

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestNewRedis_Defaults(t *testing.T) {
	lim := NewRedis(nil, 0, 500*time.Microsecond, "")

	assert.Equal(t, DefaultLimit, lim.limit)
	assert.Equal(t, DefaultWindow, lim.window)
	assert.Equal(t, DefaultKeyPrefix, lim.prefix)
}

func TestRedis_Allow(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	lim := NewRedis(client, 2, time.Minute, "test:rl:")
	fixed := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	lim.now = func() time.Time { return fixed }

	first, err := lim.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	second, err := lim.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	third, err := lim.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)

	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.True(t, second.Allowed)
	assert.False(t, third.Allowed)
	assert.Equal(t, 0, third.Remaining)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC), third.ResetAt.UTC())

	other, err := lim.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	ttl, err := client.PTTL(ctx, "test:rl:10.0.0.1:"+slotOf(fixed, time.Minute)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	lim.now = func() time.Time { return fixed.Add(time.Minute) }
	next, err := lim.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, next.Allowed, "new window starts fresh")
}

func slotOf(t time.Time, w time.Duration) string {
	return strconv.FormatInt(t.UnixMilli()/w.Milliseconds(), 10)
}

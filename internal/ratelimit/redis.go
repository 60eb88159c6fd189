package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "ratelimit:"

// Redis is a fixed-window limiter shared by every instance pointing at the
// same Redis. Each window gets its own key, so counters expire on their own.
type Redis struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedis returns a Redis-backed limiter.
func NewRedis(client redis.Cmdable, limit int, per time.Duration, prefix string) *Redis {
	if limit <= 0 {
		limit = DefaultLimit
	}
	// Windows are keyed by whole milliseconds.
	if per < time.Millisecond {
		per = DefaultWindow
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, limit: limit, window: per, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	now := r.now()
	size := r.window.Milliseconds()
	slot := now.UnixMilli() / size
	start := time.UnixMilli(slot * size)
	redisKey := r.prefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, r.window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis pipeline: %w", err)
	}

	count := int(incr.Val())
	return Result{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: max(r.limit-count, 0),
		ResetAt:   start.Add(r.window),
	}, nil
}

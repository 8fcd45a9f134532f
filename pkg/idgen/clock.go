package idgen

import (
	"context"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// Clock is the millisecond time source of a Snowflake.
type Clock interface {
	Now() int64
}

type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// RedisClock reads time from a shared Redis server so that coordinators on
// different hosts agree on id ordering. Falls back to local time on error.
type RedisClock struct {
	client  redis.Cmdable
	timeout time.Duration
}

func NewRedisClock(client redis.Cmdable, timeout time.Duration) *RedisClock {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	return &RedisClock{client: client, timeout: timeout}
}

func (r *RedisClock) Now() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	t, err := r.client.Time(ctx).Result()
	if err != nil {
		logger.Warnw("redis clock unavailable, using local time", "error", err.Error())
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}

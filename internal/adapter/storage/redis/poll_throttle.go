package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PollThrottle implements ports.PollThrottle with SET NX + TTL: the first
// caller in an interval claims the key, later callers read the remaining TTL.
type PollThrottle struct {
	client *goredis.Client
	prefix string
}

// NewPollThrottle creates a new Redis-backed poll throttle.
func NewPollThrottle(client *goredis.Client) *PollThrottle {
	return &PollThrottle{
		client: client,
		prefix: "poll:",
	}
}

// Allow reports whether the key may be polled now. When denied, the second
// return value is the time until the next permitted poll.
func (t *PollThrottle) Allow(ctx context.Context, key string, interval time.Duration) (bool, time.Duration, error) {
	redisKey := t.prefix + key

	ok, err := t.client.SetNX(ctx, redisKey, 1, interval).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis poll throttle setnx: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := t.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis poll throttle ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return false, ttl, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLoginLimiter counts failed logins in Redis. The counter expires lockout
// after the first failure, so a lockout lifts on its own.
type redisLoginLimiter struct {
	client      *redis.Client
	maxAttempts int64
	lockout     time.Duration
}

// NewRedisLoginLimiter creates a LoginLimiter backed by Redis
func NewRedisLoginLimiter(client *redis.Client, maxAttempts int, lockout time.Duration) LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &redisLoginLimiter{client: client, maxAttempts: int64(maxAttempts), lockout: lockout}
}

func (l *redisLoginLimiter) key(k string) string {
	return fmt.Sprintf("login:attempts:%s", k)
}

func (l *redisLoginLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Get(ctx, l.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= l.maxAttempts, nil
}

func (l *redisLoginLimiter) Fail(ctx context.Context, key string) error {
	k := l.key(key)
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return l.client.Expire(ctx, k, l.lockout).Err()
	}
	return nil
}

func (l *redisLoginLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

type noopLoginLimiter struct{}

// NewNoopLoginLimiter never blocks. Used when Redis is not configured.
func NewNoopLoginLimiter() LoginLimiter {
	return noopLoginLimiter{}
}

func (noopLoginLimiter) Blocked(context.Context, string) (bool, error) { return false, nil }
func (noopLoginLimiter) Fail(context.Context, string) error            { return nil }
func (noopLoginLimiter) Reset(context.Context, string) error           { return nil }

// Package redislock serializes token refreshes across processes and caches
// freshly refreshed tokens in Redis.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/coachpo/shimmer/internal/infra/config"
)

const lockPrefix = "shimmer:lock:"

// ErrNotAcquired reports that the lock stayed held by another owner until the wait expired.
var ErrNotAcquired = errors.New("redislock: lock not acquired")

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// NewClient opens a Redis client for cfg.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks connectivity.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Locker hands out SET NX PX locks.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	// wait bounds how long Acquire polls a held lock.
	wait time.Duration
}

// NewLocker returns a Locker whose locks expire after ttl. Acquire waits at most ttl.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl, wait: ttl}
}

// Acquire blocks until the lock named key is held or the wait expires. The
// returned release func only deletes the lock while this owner still holds it.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("redislock: nil client")
	}
	name := lockPrefix + strings.TrimSpace(key)
	owner := uuid.NewString()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, name, owner, l.ttl).Result()
		if err != nil {
			return false, backoff.Permanent(fmt.Errorf("redislock: set %s: %w", name, err))
		}
		if !ok {
			return false, ErrNotAcquired
		}
		return true, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(l.wait))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{name}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redislock: release %s: %w", name, err)
		}
		return nil
	}
	return release, nil
}

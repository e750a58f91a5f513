package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/shimmer/internal/domain/tokenstore"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAcquireAndRelease(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, time.Second)

	release, err := locker.Acquire(ctx, "fitbit:user-1")
	require.NoError(t, err)
	require.True(t, mr.Exists(lockPrefix+"fitbit:user-1"))

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists(lockPrefix+"fitbit:user-1"))
}

func TestAcquireWaitsForHolder(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, 2*time.Second)

	release, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = release(context.Background())
	}()

	second, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, second(ctx))
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	holder := NewLocker(client, 10*time.Second)
	_, err := holder.Acquire(ctx, "busy")
	require.NoError(t, err)

	impatient := &Locker{client: client, ttl: time.Second, wait: 100 * time.Millisecond}
	_, err = impatient.Acquire(ctx, "busy")
	require.True(t, errors.Is(err, ErrNotAcquired), "got %v", err)
}

func TestReleaseDoesNotDeleteForeignLock(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, time.Second)

	release, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, mr.Set(lockPrefix+"k", "someone-else"))

	require.NoError(t, release(ctx))
	got, err := mr.Get(lockPrefix + "k")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestAcquireHonoursCancellation(t *testing.T) {
	_, client := setupRedis(t)
	locker := NewLocker(client, 10*time.Second)
	_, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenCacheRoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	cache := NewTokenCache(client, time.Minute)
	key := tokenstore.Key{UserID: "user-1", Provider: "withings"}

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	token := tokenstore.Token{
		UserID:       "user-1",
		Provider:     "withings",
		AccessToken:  "a",
		RefreshToken: "r",
		Scopes:       []string{"user.metrics"},
		ExpiresAt:    expires,
	}
	require.NoError(t, cache.Put(ctx, token))
	require.Equal(t, time.Minute, mr.TTL(cacheKey(key)))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", got.AccessToken)
	require.Equal(t, "r", got.RefreshToken)
	require.True(t, got.ExpiresAt.Equal(expires))
	require.Equal(t, []string{"user.metrics"}, got.Scopes)

	require.NoError(t, cache.Invalidate(ctx, key))
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTokenCacheTTLFollowsExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	cache := NewTokenCache(client, time.Hour)

	soon := tokenstore.Token{UserID: "u", Provider: "fitbit", AccessToken: "a", ExpiresAt: time.Now().Add(30 * time.Second)}
	require.NoError(t, cache.Put(ctx, soon))
	require.LessOrEqual(t, mr.TTL(cacheKey(soon.Key())), 30*time.Second)

	expired := tokenstore.Token{UserID: "u2", Provider: "fitbit", AccessToken: "a", ExpiresAt: time.Now().Add(-time.Second)}
	require.NoError(t, cache.Put(ctx, expired))
	require.False(t, mr.Exists(cacheKey(expired.Key())))
}

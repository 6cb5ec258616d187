package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

var noon = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func fixedLimiter(client *redis.Client, fallback bool, at time.Time) *WindowLimiter {
	l := NewWindowLimiter(client, zap.NewNop(), fallback)
	l.now = func() time.Time { return at }
	return l
}

func TestWindowLimiter_Allow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := fixedLimiter(client, false, noon)

	ctx := context.Background()
	key := "pickup:1"
	var limit int64 = 5

	for i := range limit {
		allowed, err := limiter.Allow(ctx, key, limit, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, limit, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "request should be denied after limit exceeded")
}

func TestWindowLimiter_AllowN(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := fixedLimiter(client, false, noon)
	ctx := context.Background()

	allowed, err := limiter.AllowN(ctx, "bulk", 7, 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.AllowN(ctx, "bulk", 4, 10, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestWindowLimiter_KeysAreIndependent(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := fixedLimiter(client, false, noon)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "pickup:1", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "pickup:2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindowLimiter_NewWindowStartsFresh(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	start := noon

	first := fixedLimiter(client, false, start)
	for range 3 {
		_, err := first.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
	}
	allowed, err := first.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	next := fixedLimiter(client, false, start.Add(time.Minute))
	allowed, err = next.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindowLimiter_ExpiresKeys(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewWindowLimiter(client, zap.NewNop(), false)

	_, err := limiter.Allow(context.Background(), "ttl", 1, time.Minute)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Minute+time.Second, mr.TTL(keys[0]))

	mr.FastForward(2 * time.Minute)
	assert.Empty(t, mr.Keys())
}

func TestWindowLimiter_Remaining(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := fixedLimiter(client, false, noon)
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "r", 5, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 5, remaining)

	for range 7 {
		_, err := limiter.Allow(ctx, "r", 5, time.Minute)
		require.NoError(t, err)
	}
	remaining, err = limiter.Remaining(ctx, "r", 5, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	// 下一个窗口重新计数
	limiter.now = func() time.Time { return noon.Add(time.Minute) }
	remaining, err = limiter.Remaining(ctx, "r", 5, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 5, remaining)
}

func TestWindowLimiter_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()
	ctx := context.Background()

	open := NewWindowLimiter(client, zap.NewNop(), true)
	allowed, err := open.Allow(ctx, "down", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "fail-open limiter allows requests")

	closed := NewWindowLimiter(client, zap.NewNop(), false)
	allowed, err = closed.Allow(ctx, "down", 1, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestWindowLimiter_InvalidWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewWindowLimiter(client, zap.NewNop(), true)

	_, err := limiter.Allow(context.Background(), "k", 1, 0)
	assert.Error(t, err)
}

func TestWindowLimiter_Concurrent(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := fixedLimiter(client, false, noon)
	ctx := context.Background()

	var allowedCount atomic.Int64
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			allowed, err := limiter.Allow(ctx, "shared", 20, time.Minute)
			if assert.NoError(t, err, fmt.Sprintf("request %d", i)) && allowed {
				allowedCount.Add(1)
			}
		})
	}
	wg.Wait()
	assert.EqualValues(t, 20, allowedCount.Load())
}

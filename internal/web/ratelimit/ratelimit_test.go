package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBucket(t *testing.T, capacity int) (*TokenBucket, *clock) {
	t.Helper()
	tb := NewTokenBucket(TokenBucketConfig{Capacity: capacity, Window: time.Minute})
	c := &clock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	tb.now = c.Now
	t.Cleanup(func() { tb.Close() })
	return tb, c
}

func TestTokenBucket_ExhaustsAndRefills(t *testing.T) {
	tb, clk := newTestBucket(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := tb.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, info.Allowed, "request %d", i)
		assert.Equal(t, 2-i, info.Remaining)
		assert.Equal(t, 3, info.Limit)
	}

	info, err := tb.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)

	clk.Advance(20 * time.Second)
	info, err = tb.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	tb, _ := newTestBucket(t, 1)
	ctx := context.Background()

	info, _ := tb.Allow(ctx, "a")
	assert.True(t, info.Allowed)
	info, _ = tb.Allow(ctx, "a")
	assert.False(t, info.Allowed)
	info, _ = tb.Allow(ctx, "b")
	assert.True(t, info.Allowed)
}

func TestTokenBucket_Cleanup(t *testing.T) {
	tb, clk := newTestBucket(t, 2)
	_, _ = tb.Allow(context.Background(), "a")

	assert.Equal(t, 0, tb.cleanup())
	clk.Advance(3 * time.Minute)
	assert.Equal(t, 1, tb.cleanup())
}

func TestTokenBucket_ConcurrentAllow(t *testing.T) {
	tb, _ := newTestBucket(t, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := tb.Allow(context.Background(), "shared")
			if err == nil && info.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewRedisLimiter_InvalidConfig(t *testing.T) {
	client, _ := setupRedis(t)

	_, err := NewRedisLimiter(RedisLimiterConfig{Limit: 1, Window: time.Minute})
	assert.EqualError(t, err, "redis client is required")
	_, err = NewRedisLimiter(RedisLimiterConfig{Client: client, Window: time.Minute})
	assert.EqualError(t, err, "limit must be greater than 0")
	_, err = NewRedisLimiter(RedisLimiterConfig{Client: client, Limit: 1})
	assert.EqualError(t, err, "window must be greater than 0")
}

func TestRedisLimiter_Allow(t *testing.T) {
	client, mr := setupRedis(t)
	rl, err := NewRedisLimiter(RedisLimiterConfig{Client: client, Limit: 2, Window: time.Minute, Prefix: "rl:"})
	require.NoError(t, err)
	ctx := context.Background()

	info, err := rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)

	info, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)

	info, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, info.Allowed)

	assert.True(t, mr.Exists("rl:10.0.0.1"))
	require.NoError(t, rl.Reset(ctx, "10.0.0.1"))
	info, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	client, _ := setupRedis(t)
	rl, err := NewRedisLimiter(RedisLimiterConfig{Client: client, Limit: 1, Window: time.Minute})
	require.NoError(t, err)
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return start }
	ctx := context.Background()

	info, err := rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	info, err = rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, info.Allowed)

	rl.now = func() time.Time { return start.Add(61 * time.Second) }
	info, err = rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

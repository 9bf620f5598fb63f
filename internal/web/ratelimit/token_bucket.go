package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory limiter. Each key holds up to Capacity tokens
// and regains Capacity tokens per Window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// TokenBucketConfig configures a TokenBucket.
type TokenBucketConfig struct {
	Capacity int
	Window   time.Duration
	// CleanupInterval is how often idle buckets are dropped. Zero disables
	// the cleanup goroutine.
	CleanupInterval time.Duration
}

// DefaultTokenBucketConfig allows 20 requests per minute.
func DefaultTokenBucketConfig() TokenBucketConfig {
	return TokenBucketConfig{
		Capacity:        20,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewTokenBucket creates a limiter and starts its cleanup goroutine.
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	if config.Capacity <= 0 {
		config.Capacity = DefaultTokenBucketConfig().Capacity
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: config.Capacity,
		window:   config.Window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go tb.cleanupLoop(config.CleanupInterval)
	}
	return tb
}

// Allow takes one token from key.
func (tb *TokenBucket) Allow(_ context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, lastRefill: now}
		tb.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		refill := int(float64(tb.capacity) * elapsed.Seconds() / tb.window.Seconds())
		if refill > 0 {
			b.tokens = min(tb.capacity, b.tokens+refill)
			b.lastRefill = now
		}
	}

	info := &Info{Limit: tb.capacity, ResetAt: b.lastRefill.Add(tb.window)}
	if b.tokens > 0 {
		b.tokens--
		info.Remaining = b.tokens
		info.Allowed = true
	}
	return info, nil
}

func (tb *TokenBucket) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tb.cleanup()
		case <-tb.stop:
			return
		}
	}
}

// cleanup drops buckets untouched for two windows; they would be full anyway.
func (tb *TokenBucket) cleanup() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	dropped := 0
	for key, b := range tb.buckets {
		if now.Sub(b.lastRefill) > 2*tb.window {
			delete(tb.buckets, key)
			dropped++
		}
	}
	return dropped
}

// Close stops the cleanup goroutine.
func (tb *TokenBucket) Close() error {
	tb.once.Do(func() { close(tb.stop) })
	return nil
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledWriteLimiterAllows(t *testing.T) {
	limiter, err := NewWriteLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowGarage(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWriteLimiterRejectsBadSettings(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	_, err := NewWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, Rate: 0, Burst: 5}}, client)
	assert.ErrorIs(t, err, ErrInvalidBucket)

	limiter, err := NewWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, Rate: 5, Burst: 10}}, client)
	require.NoError(t, err)
	assert.True(t, limiter.Enabled())
	_, err = limiter.AllowGarage(context.Background(), " ")
	assert.Error(t, err)
}

func TestNilLockerIsInert(t *testing.T) {
	var locker *Locker
	lease, ok, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.False(t, ok)
	assert.NoError(t, lease.Release(context.Background()))
	assert.Nil(t, NewLocker(nil))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, Bucket{Rate: 5, Burst: 10}.ttl())
	assert.Equal(t, time.Second, Bucket{Rate: 100, Burst: 1}.ttl())
	assert.Equal(t, time.Second, Bucket{Rate: 0, Burst: 1}.ttl())
}

func TestDecideAllowed(t *testing.T) {
	d, err := decide([]any{int64(1), "4.5", int64(1700000000000)}, Bucket{Rate: 2, Burst: 10})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, 4, d.Remaining)
	assert.Zero(t, d.RetryAfter)
	assert.Equal(t, time.UnixMilli(1700000000000), d.ResetAt)
}

func TestDecideDeniedComputesRetryAfter(t *testing.T) {
	d, err := decide([]any{int64(0), "0.5", int64(1700000000000)}, Bucket{Rate: 2, Burst: 10})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 250*time.Millisecond, d.RetryAfter)
}

func TestDecideRejectsMalformedReply(t *testing.T) {
	_, err := decide([]any{int64(1)}, Bucket{Rate: 1, Burst: 1})
	assert.Error(t, err)

	_, err = decide([]any{int64(1), "x", int64(0)}, Bucket{Rate: 1, Burst: 1})
	assert.Error(t, err)

	_, err = decide([]any{"1", "1", int64(0)}, Bucket{Rate: 1, Burst: 1})
	assert.Error(t, err)
}

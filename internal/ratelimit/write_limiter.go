package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/garageflow/internal/config"
)

const keyGarageWrites = "garageflow:writes:garage:%s"

// WriteLimiter caps mutating API calls per garage with a redis token bucket.
type WriteLimiter struct {
	bucket *TokenBucket
	size   Bucket
}

// NewWriteLimiter returns nil when limiting is off or redis is absent.
func NewWriteLimiter(cfg config.Config, client *redis.Client) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	size := Bucket{Rate: limitCfg.Rate, Burst: limitCfg.Burst}
	if !size.valid() {
		return nil, fmt.Errorf("%w: rate %.2f burst %d", ErrInvalidBucket, size.Rate, size.Burst)
	}
	return &WriteLimiter{bucket: NewTokenBucket(client), size: size}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowGarage takes one token from the garage's bucket. A disabled limiter
// always allows.
func (l *WriteLimiter) AllowGarage(ctx context.Context, garageID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	garageID = strings.TrimSpace(garageID)
	if garageID == "" {
		return Decision{}, ErrInvalidBucket
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyGarageWrites, garageID), l.size)
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// KEYS[1] bucket hash. ARGV: rate per second, burst, ttl ms.
// Returns {allowed, tokens left as a string, server time in ms}.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil then
  tokens = burst
else
  local elapsed = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (elapsed / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), now}
`

var (
	ErrLimiterNotConfigured = errors.New("rate_limiter_not_configured")
	ErrInvalidBucket        = errors.New("invalid_rate_limit_bucket")
)

// Bucket sizes a token bucket: Burst tokens refilled at Rate per second.
type Bucket struct {
	Rate  float64
	Burst int
}

func (b Bucket) valid() bool {
	return b.Rate > 0 && b.Burst > 0
}

// ttl keeps an idle bucket around for twice its full refill time.
func (b Bucket) ttl() time.Duration {
	if !b.valid() {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(b.Burst)/b.Rate*2))
	return time.Duration(seconds) * time.Second
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, b Bucket) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, ErrLimiterNotConfigured
	}
	if key == "" || !b.valid() {
		return Decision{}, ErrInvalidBucket
	}

	reply, err := t.script.Run(ctx, t.client, []string{key},
		b.Rate, b.Burst, b.ttl().Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	return decide(reply, b)
}

func decide(reply []any, b Bucket) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("token bucket: unexpected reply %v", reply)
	}
	allowed, ok := reply[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("token bucket: bad allowed flag %v", reply[0])
	}
	raw, ok := reply[1].(string)
	if !ok {
		return Decision{}, fmt.Errorf("token bucket: bad token count %v", reply[1])
	}
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket: %w", err)
	}
	nowMillis, ok := reply[2].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("token bucket: bad timestamp %v", reply[2])
	}

	d := Decision{
		Allowed:   allowed == 1,
		Limit:     b.Burst,
		Remaining: int(math.Floor(tokens)),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration((1 - tokens) / b.Rate * float64(time.Second))
	}
	d.ResetAt = time.UnixMilli(nowMillis).Add(d.RetryAfter)
	return d, nil
}

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

var (
	ErrNotConfigured = errors.New("rate_limiter_not_configured")
	ErrInvalidBucket = errors.New("rate_limiter_invalid_bucket")
)

// refillAndTake runs atomically inside redis. Time comes from the redis
// server so portal instances with skewed clocks share one allowance.
//
// KEYS[1] bucket hash
// ARGV[1] tokens per second, ARGV[2] capacity, ARGV[3] idle ttl in ms
// returns {taken 0|1, tokens left as string, now in ms}
var refillAndTake = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(capacity, tokens + (now - last) / 1000 * rate)
end

local taken = 0
if tokens >= 1 then
  tokens = tokens - 1
  taken = 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], tonumber(ARGV[3]))
return {taken, tostring(tokens), now}
`)

// TokenBucket is a redis-backed token bucket shared by all portal instances.
type TokenBucket struct {
	client redis.Scripter
}

// Result describes one admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	// ResetAt is when the next token becomes available.
	ResetAt time.Time
}

func NewTokenBucket(client redis.Scripter) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Allow takes one token from the bucket at key. rate is tokens per second and
// burst is the bucket capacity.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	denied := &Result{Limit: burst}
	if t == nil || t.client == nil {
		return denied, ErrNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return denied, fmt.Errorf("%w: key=%q rate=%v burst=%d", ErrInvalidBucket, key, rate, burst)
	}

	reply, err := refillAndTake.Run(ctx, t.client, []string{key},
		rate, burst, bucketTTL(rate, burst).Milliseconds(),
	).Slice()
	if err != nil {
		return denied, err
	}
	if len(reply) != 3 {
		return denied, fmt.Errorf("token bucket: unexpected reply of %d values", len(reply))
	}

	left := toFloat(reply[1])
	res := &Result{
		Allowed:   toInt(reply[0]) == 1,
		Limit:     burst,
		Remaining: int(left),
	}
	if !res.Allowed && left < 1 {
		res.RetryAfter = time.Duration((1 - left) / rate * float64(time.Second))
	}
	res.ResetAt = time.UnixMilli(toInt(reply[2])).Add(res.RetryAfter)
	return res, nil
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return time.Duration(math.Max(1, math.Ceil(2*float64(burst)/rate))) * time.Second
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	}
	return 0
}

// Lua numbers are truncated to integers on the way out of redis, so the
// token count comes back as a string.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case string:
		parsed, _ := strconv.ParseFloat(n, 64)
		return parsed
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

package gateway

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/auth-gateway/internal/config"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

const rateLimitKeyPrefix = "ratelimit:"

// tokenBucketScript performs the whole read-refill-consume step atomically in
// Redis, so concurrent requests for the same IP serialize per key even across
// multiple gateway instances. The caller supplies the current time so the
// script itself stays deterministic.
//
// KEYS[1] bucket key; ARGV: capacity, refill tokens/sec, now in microseconds,
// idle TTL seconds. Returns 1 when a token was consumed, 0 otherwise.
var tokenBucketScript = redis.NewScript(`
local state = redis.call("HMGET", KEYS[1], "tokens", "last_us")
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now_us = tonumber(ARGV[3])

local tokens = tonumber(state[1])
local last_us = tonumber(state[2])
if tokens == nil or last_us == nil then
  tokens = capacity
  last_us = now_us
end

local elapsed = (now_us - last_us) / 1000000
if elapsed > 0 then
  tokens = tokens + elapsed * refill
  if tokens > capacity then
    tokens = capacity
  end
  last_us = now_us
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "last_us", tostring(last_us))
redis.call("EXPIRE", KEYS[1], ARGV[4])
return allowed
`)

// RateLimiter enforces a per-client-IP token bucket backed by Redis.
type RateLimiter struct {
	client       *redis.Client
	capacity     int
	refillPerSec float64
	idleTTL      time.Duration
	now          func() time.Time
}

// NewRateLimiter builds a limiter from configuration.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig) *RateLimiter {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 20
	}
	refill := cfg.RefillPerSec
	if refill <= 0 {
		refill = 10
	}

	// Keep idle buckets long enough to refill fully, then let Redis evict.
	idle := time.Duration(float64(capacity)/refill*2) * time.Second
	if idle < time.Minute {
		idle = time.Minute
	}

	return &RateLimiter{
		client:       client,
		capacity:     capacity,
		refillPerSec: refill,
		idleTTL:      idle,
		now:          time.Now,
	}
}

// Allow consumes one token from the client's bucket, reporting whether the
// request may proceed. A Redis failure is surfaced, never treated as allow.
func (l *RateLimiter) Allow(ctx context.Context, clientIP string) (bool, error) {
	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{rateLimitKeyPrefix + clientIP},
		l.capacity,
		l.refillPerSec,
		l.now().UnixMicro(),
		int(l.idleTTL.Seconds()),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Handle is the fiber middleware form: 429 with an empty body when the bucket
// is out of tokens, 503 when Redis is unreachable.
func (l *RateLimiter) Handle(c *fiber.Ctx) error {
	allowed, err := l.Allow(c.UserContext(), c.IP())
	if err != nil {
		return apperrors.NewUnavailable(err)
	}
	if !allowed {
		return c.Status(fiber.StatusTooManyRequests).Send(nil)
	}
	return c.Next()
}

package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hermes/pkg/errors"
)

// RedisRateLimiter implements a distributed token bucket via Redis.
// Safe across multiple service instances sharing one Redis.
type RedisRateLimiter struct {
	client      *redis.Client
	model       string
	rate        float64 // Tokens per second
	burst       int
	key         string
	tokenScript *redis.Script
}

// Lua script for the token bucket (single atomic round trip).
// KEYS[1] = bucket key
// ARGV[1] = rate (tokens per second)
// ARGV[2] = burst (max tokens)
// ARGV[3] = current timestamp (seconds, fractional)
// Returns: 1 if allowed, 0 if denied
const luaTokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

local elapsed = now - last_update
tokens = math.min(burst, tokens + elapsed * rate)

if tokens >= 1.0 then
    tokens = tokens - 1.0

    redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
    redis.call('EXPIRE', key, 3600)

    return 1
else
    redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
    redis.call('EXPIRE', key, 3600)

    return 0
end
`

// NewRedisRateLimiter creates a Redis-backed rate limiter for one model.
func NewRedisRateLimiter(client *redis.Client, model string, reqPerMinute float64, burst int) *RedisRateLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &RedisRateLimiter{
		client:      client,
		model:       model,
		rate:        reqPerMinute / 60.0,
		burst:       burst,
		key:         fmt.Sprintf("rate_limit:model:%s", model),
		tokenScript: redis.NewScript(luaTokenBucketScript),
	}
}

// NewRedisRateLimiterFromClient creates a Redis rate limiter from an
// untyped client, falling back to a no-op limiter on a type mismatch.
func NewRedisRateLimiterFromClient(clientInterface interface{}, model string, reqPerMinute float64, burst int) RateLimiter {
	client, ok := clientInterface.(*redis.Client)
	if !ok {
		return NewNoOpLimiter()
	}

	return NewRedisRateLimiter(client, model, reqPerMinute, burst)
}

// Wait blocks until a token is available or the context is done.
func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter for model %s", l.model)
		}

		if allowed {
			return nil
		}

		// One token's worth of refill time between attempts.
		waitTime := time.Duration(float64(time.Second) / l.rate)

		select {
		case <-ctx.Done():
			return errors.Wrapf(errors.ErrRateLimitExceeded, "model %s: %v", l.model, ctx.Err())
		case <-time.After(waitTime):
		}
	}
}

// Allow checks if a call can proceed without blocking.
func (l *RedisRateLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	allowed, err := l.tryAcquire(ctx)
	if err != nil {
		// On Redis failure deny rather than stampede the provider.
		return false
	}

	return allowed
}

// Limit returns the current rate limit in requests per minute.
func (l *RedisRateLimiter) Limit() float64 {
	return l.rate * 60.0
}

// tryAcquire attempts to consume one token.
func (l *RedisRateLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := l.tokenScript.Run(
		ctx,
		l.client,
		[]string{l.key},
		l.rate,
		l.burst,
		now,
	).Int()

	if err != nil {
		return false, errors.Wrap(err, "execute token bucket script")
	}

	return result == 1, nil
}

// Reset clears the limiter state. Useful in tests.
func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

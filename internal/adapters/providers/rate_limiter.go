package providers

import (
	"context"

	"golang.org/x/time/rate"

	"hermes/pkg/errors"
)

// RateLimiter throttles outbound calls for a single model.
type RateLimiter interface {
	// Wait blocks until the call can proceed or the context is done.
	Wait(ctx context.Context) error

	// Allow checks if a call can proceed without blocking.
	Allow() bool

	// Limit returns the current rate limit in requests per minute.
	Limit() float64
}

// RateLimitConfig contains rate limit settings for one model.
type RateLimitConfig struct {
	Enabled      bool
	ReqPerMinute float64
	Burst        int
}

// TokenBucketLimiter throttles locally via a token bucket. Suitable for
// single-instance deployments.
type TokenBucketLimiter struct {
	model   string
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a local token bucket limiter.
// reqPerMinute is the sustained rate; burst is the bucket size.
func NewTokenBucketLimiter(model string, reqPerMinute float64, burst int) *TokenBucketLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &TokenBucketLimiter{
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
	}
}

// Wait blocks until a token is available or the context is done.
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrRateLimitExceeded, "model %s: %v", l.model, err)
	}
	return nil
}

// Allow reports whether a call can proceed right now, consuming a token if
// so.
func (l *TokenBucketLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Limit returns the current rate limit in requests per minute.
func (l *TokenBucketLimiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// NoOpLimiter never blocks. Used when rate limiting is disabled.
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op rate limiter.
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

// Wait always returns immediately without error.
func (l *NoOpLimiter) Wait(ctx context.Context) error {
	return nil
}

// Allow always returns true.
func (l *NoOpLimiter) Allow() bool {
	return true
}

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 {
	return -1
}

// RateLimiterFactory creates per-model rate limiters with optional Redis
// support.
type RateLimiterFactory struct {
	redisClient interface{} // *redis.Client; untyped to keep this package free of the redis dependency for local use
	useRedis    bool
}

// NewRateLimiterFactory creates a factory for rate limiters. With a nil
// redisClient limiters are local in-memory (single instance); with a Redis
// client they are distributed across replicas.
func NewRateLimiterFactory(redisClient interface{}) *RateLimiterFactory {
	return &RateLimiterFactory{
		redisClient: redisClient,
		useRedis:    redisClient != nil,
	}
}

// Create creates a rate limiter for the given model.
func (f *RateLimiterFactory) Create(model string, config RateLimitConfig) RateLimiter {
	if !config.Enabled || config.ReqPerMinute <= 0 {
		return NewNoOpLimiter()
	}

	if f.useRedis {
		return NewRedisRateLimiterFromClient(f.redisClient, model, config.ReqPerMinute, config.Burst)
	}

	return NewTokenBucketLimiter(model, config.ReqPerMinute, config.Burst)
}

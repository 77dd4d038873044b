package router

import (
	"context"
	"math"
	"net/http"
	"time"

	"hermes/internal/adapters/providers"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// RetryStrategy defines the backoff strategy
type RetryStrategy string

const (
	// StrategyExponential uses exponential backoff
	StrategyExponential RetryStrategy = "exponential"
	// StrategyLinear uses linear backoff
	StrategyLinear RetryStrategy = "linear"
	// StrategyFixed uses fixed delay
	StrategyFixed RetryStrategy = "fixed"
)

// RetryConfig contains retry configuration
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     RetryStrategy
	Multiplier   float64 // For exponential backoff
}

// DefaultRetryConfig returns a sensible default configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
	}
}

// Ensure RetryRouter implements Routing
var _ Routing = (*RetryRouter)(nil)

// RetryRouter decorates a Routing with retries for transient provider
// failures. The base router never retries on its own; wrapping it in a
// RetryRouter is the only retry path and is always an explicit opt-in.
type RetryRouter struct {
	inner  Routing
	config RetryConfig
	log    *logger.Logger
}

// WithRetry wraps a router with retry behavior.
func WithRetry(inner Routing, config RetryConfig) *RetryRouter {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Strategy == "" {
		config.Strategy = StrategyExponential
	}

	return &RetryRouter{
		inner:  inner,
		config: config,
		log:    logger.Get().With("component", "retry_router"),
	}
}

// Generate delegates with retries on transient failures.
func (r *RetryRouter) Generate(ctx context.Context, req GenerateRequest) (*providers.GenerateResult, error) {
	var result *providers.GenerateResult
	err := r.do(ctx, func() error {
		var innerErr error
		result, innerErr = r.inner.Generate(ctx, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Classify delegates with retries on transient failures.
func (r *RetryRouter) Classify(ctx context.Context, req ClassifyRequest) (*providers.ClassifyResult, error) {
	var result *providers.ClassifyResult
	err := r.do(ctx, func() error {
		var innerErr error
		result, innerErr = r.inner.Classify(ctx, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Embed delegates with retries on transient failures.
func (r *RetryRouter) Embed(ctx context.Context, req EmbedRequest) (*providers.EmbedResult, error) {
	var result *providers.EmbedResult
	err := r.do(ctx, func() error {
		var innerErr error
		result, innerErr = r.inner.Embed(ctx, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resolve delegates to the wrapped router.
func (r *RetryRouter) Resolve(modelName string) (string, error) {
	return r.inner.Resolve(modelName)
}

// ListModels delegates to the wrapped router.
func (r *RetryRouter) ListModels() []string {
	return r.inner.ListModels()
}

// DefaultModel delegates to the wrapped router.
func (r *RetryRouter) DefaultModel() string {
	return r.inner.DefaultModel()
}

// ModelConfig delegates to the wrapped router.
func (r *RetryRouter) ModelConfig(name string) (providers.ModelConfig, bool) {
	return r.inner.ModelConfig(name)
}

// do runs fn with the configured retry budget.
func (r *RetryRouter) do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		r.log.Debugf("retrying after %v (attempt %d/%d): %v", delay, attempt+1, r.config.MaxRetries, err)

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry cancelled")
		case <-time.After(delay):
		}
	}

	return errors.Wrapf(lastErr, "max retries (%d) exceeded", r.config.MaxRetries)
}

// calculateDelay calculates the backoff delay based on the strategy
func (r *RetryRouter) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.Strategy {
	case StrategyExponential:
		// Exponential: delay = initial * (multiplier ^ attempt)
		delay = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt)))

	case StrategyLinear:
		// Linear: delay = initial * (1 + attempt)
		delay = r.config.InitialDelay * time.Duration(1+attempt)

	case StrategyFixed:
		delay = r.config.InitialDelay

	default:
		delay = r.config.InitialDelay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	return delay
}

// isRetryableError decides retryability from the typed error taxonomy.
// Configuration errors, capability errors and 4xx-class remote errors are
// deterministic and never retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation is the caller giving up, not a transient failure.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var transportErr *providers.TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var remoteErr *providers.RemoteError
	if errors.As(err, &remoteErr) {
		code := remoteErr.StatusCode
		return code == http.StatusTooManyRequests ||
			code == http.StatusRequestTimeout ||
			code >= 500
	}

	return false
}

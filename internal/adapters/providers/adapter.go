package providers

import (
	"context"
	"time"
)

// DefaultTimeout bounds every outbound provider call unless the model
// configuration overrides it.
const DefaultTimeout = 30 * time.Second

// Adapter translates the generic request shape into one provider's wire
// protocol and back. Implementations are bound to a single ModelConfig at
// construction and are safe for concurrent use.
type Adapter interface {
	// Generate produces a completion for the request prompt.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// Classifier is implemented by adapters whose provider supports text
// classification. Callers must type-assert; the capability is advertised,
// never assumed.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error)
}

// Embedder is implemented by adapters whose provider supports text
// embeddings.
type Embedder interface {
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResult, error)
}

// ModelConfig binds a caller-facing model name to a provider kind, endpoint,
// credential and default parameters.
type ModelConfig struct {
	// Name is the unique key callers use to select this model.
	Name string

	// Kind selects the adapter implementation.
	Kind ProviderKind

	// Endpoint is the base URL of the remote API.
	Endpoint string

	// APIKey is the provider credential. Optional for local backends.
	APIKey string

	// Params are default wire parameters (provider model id, max_tokens,
	// temperature, arbitrary extras). Per-call options override them key
	// by key.
	Params map[string]interface{}

	// Timeout bounds a single outbound call. Zero means DefaultTimeout.
	Timeout time.Duration

	// RateLimit throttles calls for this model when enabled.
	RateLimit RateLimitConfig

	// Pricing converts token usage into cost for accounting. Optional.
	Pricing PricingConfig
}

// PricingConfig holds per-1K-token costs in USD.
type PricingConfig struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// Cost converts token counts into USD amounts.
func (p PricingConfig) Cost(promptTokens, completionTokens int) (inputUSD, outputUSD float64) {
	inputUSD = (float64(promptTokens) / 1000.0) * p.InputCostPer1K
	outputUSD = (float64(completionTokens) / 1000.0) * p.OutputCostPer1K
	return inputUSD, outputUSD
}

// callTimeout returns the effective timeout for outbound calls.
func (c ModelConfig) callTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

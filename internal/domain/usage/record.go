package usage

import "time"

// Operation names a routed call type.
const (
	OperationGenerate = "generate"
	OperationClassify = "classify"
	OperationEmbed    = "embed"
)

// Record outcome values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Record is a single proxied model call, as stored in ClickHouse and
// published on the usage topic.
type Record struct {
	Timestamp time.Time `ch:"timestamp" json:"timestamp"`
	EventID   string    `ch:"event_id" json:"event_id"`
	RequestID string    `ch:"request_id" json:"request_id"`

	// Routing
	Model        string `ch:"model" json:"model"`
	ProviderKind string `ch:"provider_kind" json:"provider_kind"`
	Operation    string `ch:"operation" json:"operation"`

	// Token usage as reported by the provider (zero when not reported)
	PromptTokens     uint32 `ch:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens uint32 `ch:"completion_tokens" json:"completion_tokens"`
	TotalTokens      uint32 `ch:"total_tokens" json:"total_tokens"`

	// Cost (USD, derived from per-model pricing)
	InputCostUSD  float64 `ch:"input_cost_usd" json:"input_cost_usd"`
	OutputCostUSD float64 `ch:"output_cost_usd" json:"output_cost_usd"`
	TotalCostUSD  float64 `ch:"total_cost_usd" json:"total_cost_usd"`

	// Outcome
	Status    string `ch:"status" json:"status"`
	ErrorKind string `ch:"error_kind" json:"error_kind"`
	CacheHit  bool   `ch:"cache_hit" json:"cache_hit"`

	// Performance
	LatencyMs uint32 `ch:"latency_ms" json:"latency_ms"`

	CreatedAt time.Time `ch:"created_at" json:"created_at"`
}

// Summary is an aggregated view over records, keyed by model.
type Summary struct {
	Model            string  `json:"model"`
	Requests         uint64  `json:"requests"`
	Errors           uint64  `json:"errors"`
	CacheHits        uint64  `json:"cache_hits"`
	PromptTokens     uint64  `json:"prompt_tokens"`
	CompletionTokens uint64  `json:"completion_tokens"`
	TotalTokens      uint64  `json:"total_tokens"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
}

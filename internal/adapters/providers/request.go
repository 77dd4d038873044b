package providers

import (
	"encoding/json"
)

// GenerateRequest is the provider-agnostic completion request.
type GenerateRequest struct {
	// Prompt is the user input. Must be non-empty.
	Prompt string

	// Options override the bound ModelConfig params key by key. Unknown
	// keys pass through to the provider payload untouched.
	Options map[string]interface{}
}

// GenerateResult is the normalized completion response.
type GenerateResult struct {
	// Text is the extracted completion. Always present, possibly empty.
	Text string

	// Raw is the provider's decoded response body, kept for diagnostics.
	Raw json.RawMessage

	// Usage holds token counts when the provider reports them.
	Usage Usage
}

// ClassifyRequest is the provider-agnostic classification request.
type ClassifyRequest struct {
	Text    string
	Options map[string]interface{}
}

// Label is a single classification outcome.
type Label struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ClassifyResult is the normalized classification response.
type ClassifyResult struct {
	Labels []Label
	Raw    json.RawMessage
}

// EmbedRequest is the provider-agnostic embedding request.
type EmbedRequest struct {
	Text    string
	Options map[string]interface{}
}

// EmbedResult is the normalized embedding response.
type EmbedResult struct {
	Embedding []float32
	Raw       json.RawMessage
}

// Usage holds token counts reported by a provider. Zero values mean the
// provider did not report usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// mergeParams overlays per-call options on top of the bound defaults.
// Neither input map is modified.
func mergeParams(base, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// popString removes key from params and returns it as a string, or fallback
// when absent or not a string.
func popString(params map[string]interface{}, key, fallback string) string {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	delete(params, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// popInt removes key from params and returns it as an int. JSON decoding
// yields float64 and YAML yields int, both are accepted.
func popInt(params map[string]interface{}, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	delete(params, key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}

// popFloat removes key from params and returns it as a float64.
func popFloat(params map[string]interface{}, key string, fallback float64) float64 {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	delete(params, key)
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

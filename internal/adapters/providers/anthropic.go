package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"hermes/pkg/errors"
)

// Anthropic messages wire defaults.
const (
	defaultAnthropicModel     = "claude-3-opus-20240229"
	defaultAnthropicMaxTokens = 256
	anthropicVersion          = "2023-06-01"
)

// Ensure AnthropicAdapter implements Adapter
var _ Adapter = (*AnthropicAdapter)(nil)

// AnthropicAdapter speaks the Anthropic messages wire protocol.
type AnthropicAdapter struct {
	cfg     ModelConfig
	limiter RateLimiter
	client  *http.Client
}

// NewAnthropicAdapter creates an adapter bound to one model configuration.
func NewAnthropicAdapter(cfg ModelConfig, limiter RateLimiter) *AnthropicAdapter {
	return &AnthropicAdapter{
		cfg:     cfg,
		limiter: limiter,
		client:  &http.Client{Timeout: cfg.callTimeout()},
	}
}

// anthropicResponse is the subset of the messages response the proxy
// consumes. The completion text arrives as typed content blocks.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends a messages request.
func (a *AnthropicAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if a.cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s: API key not configured", a.cfg.Name)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Model: a.cfg.Name, Limit: a.limiter.Limit(), Err: err}
	}

	merged := mergeParams(a.cfg.Params, req.Options)
	payload := map[string]interface{}{
		"model":      popString(merged, "model", defaultAnthropicModel),
		"max_tokens": popInt(merged, "max_tokens", defaultAnthropicMaxTokens),
		"messages":   []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	for k, v := range merged {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal messages request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Kind: KindAnthropicMessages, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: KindAnthropicMessages, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Kind: KindAnthropicMessages, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil || len(msgResp.Content) == 0 {
		return nil, &ResponseShapeError{Kind: KindAnthropicMessages, Expected: "content[].text", Raw: respBody}
	}

	var textParts []string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	return &GenerateResult{
		Text: strings.Join(textParts, "\n"),
		Raw:  respBody,
		Usage: Usage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}, nil
}

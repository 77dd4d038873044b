package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"hermes/pkg/errors"
)

// Chat completions wire defaults.
const (
	defaultChatModel       = "gpt-4"
	defaultChatMaxTokens   = 256
	defaultChatTemperature = 0.7
)

// Ensure OpenAIAdapter implements Adapter
var _ Adapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter speaks the OpenAI chat completions wire protocol.
type OpenAIAdapter struct {
	cfg     ModelConfig
	limiter RateLimiter
	client  *http.Client
}

// NewOpenAIAdapter creates an adapter bound to one model configuration.
func NewOpenAIAdapter(cfg ModelConfig, limiter RateLimiter) *OpenAIAdapter {
	return &OpenAIAdapter{
		cfg:     cfg,
		limiter: limiter,
		client:  &http.Client{Timeout: cfg.callTimeout()},
	}
}

// chatMessage is one entry of the chat completions messages array.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the subset of the chat completions response the
// proxy consumes.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Generate sends a chat completion request.
func (a *OpenAIAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if a.cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s: API key not configured", a.cfg.Name)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Model: a.cfg.Name, Limit: a.limiter.Limit(), Err: err}
	}

	// Known wire fields are lifted out of the merged params; everything
	// else passes through at the payload root.
	merged := mergeParams(a.cfg.Params, req.Options)
	payload := map[string]interface{}{
		"model":       popString(merged, "model", defaultChatModel),
		"messages":    []chatMessage{{Role: "user", Content: req.Prompt}},
		"max_tokens":  popInt(merged, "max_tokens", defaultChatMaxTokens),
		"temperature": popFloat(merged, "temperature", defaultChatTemperature),
	}
	for k, v := range merged {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Kind: KindOpenAIChat, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: KindOpenAIChat, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Kind: KindOpenAIChat, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil || len(chatResp.Choices) == 0 {
		return nil, &ResponseShapeError{Kind: KindOpenAIChat, Expected: "choices[0].message.content", Raw: respBody}
	}

	return &GenerateResult{
		Text:  chatResp.Choices[0].Message.Content,
		Raw:   respBody,
		Usage: chatResp.Usage,
	}, nil
}

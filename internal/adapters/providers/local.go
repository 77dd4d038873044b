package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"hermes/pkg/errors"
)

// Ensure LocalAdapter implements Adapter
var _ Adapter = (*LocalAdapter)(nil)

// LocalAdapter speaks the completion protocol of self-hosted backends
// (llama.cpp servers and compatible). Auth is optional.
type LocalAdapter struct {
	cfg     ModelConfig
	limiter RateLimiter
	client  *http.Client
}

// NewLocalAdapter creates an adapter bound to one model configuration.
func NewLocalAdapter(cfg ModelConfig, limiter RateLimiter) *LocalAdapter {
	return &LocalAdapter{
		cfg:     cfg,
		limiter: limiter,
		client:  &http.Client{Timeout: cfg.callTimeout()},
	}
}

// localResponse distinguishes a missing completion field from an empty one;
// backends answer either {"text": ...} or {"generated": ...}.
type localResponse struct {
	Text      *string `json:"text"`
	Generated *string `json:"generated"`
}

// Generate sends a completion request.
func (a *LocalAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Model: a.cfg.Name, Limit: a.limiter.Limit(), Err: err}
	}

	merged := mergeParams(a.cfg.Params, req.Options)
	payload := map[string]interface{}{
		"prompt": req.Prompt,
	}
	for k, v := range merged {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Kind: KindLocalCompletion, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: KindLocalCompletion, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Kind: KindLocalCompletion, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var localResp localResponse
	if err := json.Unmarshal(respBody, &localResp); err != nil {
		return nil, &ResponseShapeError{Kind: KindLocalCompletion, Expected: "text or generated", Raw: respBody}
	}

	switch {
	case localResp.Text != nil:
		return &GenerateResult{Text: *localResp.Text, Raw: respBody}, nil
	case localResp.Generated != nil:
		return &GenerateResult{Text: *localResp.Generated, Raw: respBody}, nil
	default:
		return nil, &ResponseShapeError{Kind: KindLocalCompletion, Expected: "text or generated", Raw: respBody}
	}
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"hermes/pkg/errors"
)

// Ensure GeminiAdapter implements Adapter
var _ Adapter = (*GeminiAdapter)(nil)

// GeminiAdapter speaks the Gemini generateContent wire protocol. The
// configured endpoint carries the full model path; merged params land at
// the payload root (e.g. generationConfig).
type GeminiAdapter struct {
	cfg     ModelConfig
	limiter RateLimiter
	client  *http.Client
}

// NewGeminiAdapter creates an adapter bound to one model configuration.
func NewGeminiAdapter(cfg ModelConfig, limiter RateLimiter) *GeminiAdapter {
	return &GeminiAdapter{
		cfg:     cfg,
		limiter: limiter,
		client:  &http.Client{Timeout: cfg.callTimeout()},
	}
}

// geminiResponse is the subset of the generateContent response the proxy
// consumes.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends a generateContent request.
func (a *GeminiAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if a.cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s: API key not configured", a.cfg.Name)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Model: a.cfg.Name, Limit: a.limiter.Limit(), Err: err}
	}

	merged := mergeParams(a.cfg.Params, req.Options)
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": req.Prompt}}},
		},
	}
	for k, v := range merged {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal generateContent request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Kind: KindGeminiGenerate, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: KindGeminiGenerate, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Kind: KindGeminiGenerate, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var genResp geminiResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil ||
		len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, &ResponseShapeError{Kind: KindGeminiGenerate, Expected: "candidates[0].content.parts[0].text", Raw: respBody}
	}

	return &GenerateResult{
		Text: genResp.Candidates[0].Content.Parts[0].Text,
		Raw:  respBody,
		Usage: Usage{
			PromptTokens:     genResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: genResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      genResp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

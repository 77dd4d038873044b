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

// Ensure HuggingFaceAdapter implements all capabilities
var (
	_ Adapter    = (*HuggingFaceAdapter)(nil)
	_ Classifier = (*HuggingFaceAdapter)(nil)
	_ Embedder   = (*HuggingFaceAdapter)(nil)
)

// HuggingFaceAdapter speaks the Hugging Face inference wire protocol. The
// same endpoint family serves text generation, text classification and
// feature extraction, so this adapter advertises all three capabilities.
type HuggingFaceAdapter struct {
	cfg     ModelConfig
	limiter RateLimiter
	client  *http.Client
}

// NewHuggingFaceAdapter creates an adapter bound to one model
// configuration.
func NewHuggingFaceAdapter(cfg ModelConfig, limiter RateLimiter) *HuggingFaceAdapter {
	return &HuggingFaceAdapter{
		cfg:     cfg,
		limiter: limiter,
		client:  &http.Client{Timeout: cfg.callTimeout()},
	}
}

// hfLabel is one classification outcome on the wire.
type hfLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Generate sends a text generation request.
func (a *HuggingFaceAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	merged := mergeParams(a.cfg.Params, req.Options)
	modelID := popString(merged, "model", "")
	if modelID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s: model parameter not configured", a.cfg.Name)
	}

	payload := map[string]interface{}{
		"inputs":     req.Prompt,
		"parameters": merged,
		"options":    map[string]bool{"wait_for_model": true},
	}

	respBody, err := a.call(ctx, modelID, payload)
	if err != nil {
		return nil, err
	}

	// Generation models answer [{"generated_text": ...}]; some community
	// backends answer {"text": ...}.
	var listResp []struct {
		GeneratedText *string `json:"generated_text"`
	}
	if err := json.Unmarshal(respBody, &listResp); err == nil && len(listResp) > 0 && listResp[0].GeneratedText != nil {
		return &GenerateResult{Text: *listResp[0].GeneratedText, Raw: respBody}, nil
	}

	var objResp struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &objResp); err == nil && objResp.Text != nil {
		return &GenerateResult{Text: *objResp.Text, Raw: respBody}, nil
	}

	return nil, &ResponseShapeError{Kind: KindHuggingFaceInference, Expected: "[0].generated_text or text", Raw: respBody}
}

// Classify sends a text classification request.
func (a *HuggingFaceAdapter) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	merged := mergeParams(a.cfg.Params, req.Options)
	modelID := popString(merged, "model", "")
	if modelID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s: model parameter not configured", a.cfg.Name)
	}

	payload := map[string]interface{}{
		"inputs":  req.Text,
		"options": map[string]bool{"wait_for_model": true},
	}
	if len(merged) > 0 {
		payload["parameters"] = merged
	}

	respBody, err := a.call(ctx, modelID, payload)
	if err != nil {
		return nil, err
	}

	// Classification models answer [[{label, score}]] for a single input;
	// some pipelines flatten to [{label, score}].
	var wire []hfLabel
	var nested [][]hfLabel
	if err := json.Unmarshal(respBody, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		wire = nested[0]
	} else if err := json.Unmarshal(respBody, &wire); err != nil || len(wire) == 0 {
		return nil, &ResponseShapeError{Kind: KindHuggingFaceInference, Expected: "[{label, score}]", Raw: respBody}
	}

	labels := make([]Label, 0, len(wire))
	for _, l := range wire {
		labels = append(labels, Label{Name: l.Label, Score: l.Score})
	}

	return &ClassifyResult{Labels: labels, Raw: respBody}, nil
}

// Embed sends a feature extraction request.
func (a *HuggingFaceAdapter) Embed(ctx context.Context, req EmbedRequest) (*EmbedResult, error) {
	merged := mergeParams(a.cfg.Params, req.Options)
	modelID := popString(merged, "model", "")
	if modelID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s: model parameter not configured", a.cfg.Name)
	}

	payload := map[string]interface{}{
		"inputs":  req.Text,
		"options": map[string]bool{"wait_for_model": true},
	}

	respBody, err := a.call(ctx, modelID, payload)
	if err != nil {
		return nil, err
	}

	// Feature extraction answers a flat vector or one row per input.
	var flat []float32
	if err := json.Unmarshal(respBody, &flat); err == nil && len(flat) > 0 {
		return &EmbedResult{Embedding: flat, Raw: respBody}, nil
	}

	var rows [][]float32
	if err := json.Unmarshal(respBody, &rows); err == nil && len(rows) > 0 && len(rows[0]) > 0 {
		return &EmbedResult{Embedding: rows[0], Raw: respBody}, nil
	}

	return nil, &ResponseShapeError{Kind: KindHuggingFaceInference, Expected: "[float] or [[float]]", Raw: respBody}
}

// call posts a payload to the inference endpoint for the given model id.
func (a *HuggingFaceAdapter) call(ctx context.Context, modelID string, payload map[string]interface{}) ([]byte, error) {
	if a.cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s: API key not configured", a.cfg.Name)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Model: a.cfg.Name, Limit: a.limiter.Limit(), Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal inference request")
	}

	url := strings.TrimSuffix(a.cfg.Endpoint, "/") + "/models/" + modelID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Kind: KindHuggingFaceInference, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: KindHuggingFaceInference, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Kind: KindHuggingFaceInference, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

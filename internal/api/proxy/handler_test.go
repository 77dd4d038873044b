package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/providers"
	domain "hermes/internal/domain/usage"
	"hermes/internal/router"
	proxysvc "hermes/internal/services/proxy"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

type stubService struct {
	generateResp *proxysvc.GenerateResponse
	generateErr  error
	classifyResp *proxysvc.ClassifyResponse
	classifyErr  error
	embedResp    *proxysvc.EmbedResponse
	embedErr     error
	models       []string
	defaultName  string

	lastGenerate router.GenerateRequest
}

func (s *stubService) Generate(ctx context.Context, req router.GenerateRequest) (*proxysvc.GenerateResponse, error) {
	s.lastGenerate = req
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return s.generateResp, nil
}

func (s *stubService) Classify(ctx context.Context, req router.ClassifyRequest) (*proxysvc.ClassifyResponse, error) {
	if s.classifyErr != nil {
		return nil, s.classifyErr
	}
	return s.classifyResp, nil
}

func (s *stubService) Embed(ctx context.Context, req router.EmbedRequest) (*proxysvc.EmbedResponse, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return s.embedResp, nil
}

func (s *stubService) ListModels() []string { return s.models }
func (s *stubService) DefaultModel() string { return s.defaultName }

type stubUsage struct {
	snapshot map[string]domain.Summary
	total    float64
}

func (s *stubUsage) Snapshot() map[string]domain.Summary { return s.snapshot }
func (s *stubUsage) TotalCost() float64                  { return s.total }

func newTestHandler(svc *stubService, usage *stubUsage) *Handler {
	if usage == nil {
		usage = &stubUsage{snapshot: map[string]domain.Summary{}}
	}
	return NewHandler(svc, usage, logger.Get())
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/anything", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleGenerate_Success(t *testing.T) {
	svc := &stubService{
		generateResp: &proxysvc.GenerateResponse{
			Text:      "hello back",
			Model:     "gpt-4o-mini",
			RequestID: "req-1",
			Usage:     &providers.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		},
	}
	h := newTestHandler(svc, nil)

	rec := postJSON(t, h.HandleGenerate, `{"prompt": "hello", "model": "gpt-4o-mini", "options": {"temperature": 0.1}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp proxysvc.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello back", resp.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 7, resp.Usage.TotalTokens)

	// The wire fields map onto the routed request.
	assert.Equal(t, "hello", svc.lastGenerate.Prompt)
	assert.Equal(t, "gpt-4o-mini", svc.lastGenerate.ModelName)
	assert.Equal(t, 0.1, svc.lastGenerate.Options["temperature"])
}

func TestHandleGenerate_MalformedJSON(t *testing.T) {
	h := newTestHandler(&stubService{}, nil)

	rec := postJSON(t, h.HandleGenerate, `{"prompt": `)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "malformed")
}

func TestHandleGenerate_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/generate", nil)
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown model", errors.Wrapf(errors.ErrUnknownModel, "model %q", "ghost"), http.StatusNotFound},
		{"no default model", errors.Wrap(errors.ErrNoDefaultModel, "no model specified"), http.StatusBadRequest},
		{"invalid input", errors.Wrap(errors.ErrInvalidInput, "empty prompt"), http.StatusBadRequest},
		{"unsupported capability", errors.Wrap(errors.ErrUnsupportedCapability, "no classify"), http.StatusBadRequest},
		{"rate limited", &providers.RateLimitError{Model: "m", Err: errors.Wrap(errors.ErrRateLimitExceeded, "denied")}, http.StatusTooManyRequests},
		{"provider timeout", &providers.TransportError{Kind: "k", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"provider unreachable", &providers.TransportError{Kind: "k", Err: fmt.Errorf("connection refused")}, http.StatusBadGateway},
		{"provider 5xx", &providers.RemoteError{Kind: "k", StatusCode: 500, Body: "oops"}, http.StatusBadGateway},
		{"bad response shape", &providers.ResponseShapeError{Kind: "k", Expected: "choices"}, http.StatusBadGateway},
		{"unexpected", fmt.Errorf("mystery"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubService{generateErr: tt.err}, nil)

			rec := postJSON(t, h.HandleGenerate, `{"prompt": "hello"}`)

			assert.Equal(t, tt.want, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestHandleClassify(t *testing.T) {
	svc := &stubService{
		classifyResp: &proxysvc.ClassifyResponse{
			Labels:    []providers.Label{{Name: "POSITIVE", Score: 0.99}},
			Model:     "classifier",
			RequestID: "req-2",
		},
	}
	h := newTestHandler(svc, nil)

	rec := postJSON(t, h.HandleClassify, `{"text": "love it", "model": "classifier"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp proxysvc.ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Labels, 1)
	assert.Equal(t, "POSITIVE", resp.Labels[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/v1/classify", nil)
	getRec := httptest.NewRecorder()
	h.HandleClassify(getRec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, getRec.Code)
}

func TestHandleEmbed(t *testing.T) {
	svc := &stubService{
		embedResp: &proxysvc.EmbedResponse{
			Embedding: []float32{0.5, 0.25},
			Model:     "embedder",
			RequestID: "req-3",
		},
	}
	h := newTestHandler(svc, nil)

	rec := postJSON(t, h.HandleEmbed, `{"text": "vector me"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp proxysvc.EmbedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Embedding, 2)
}

func TestHandleModels(t *testing.T) {
	svc := &stubService{models: []string{"fast", "smart"}, defaultName: "fast"}
	h := newTestHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.HandleModels(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"fast", "smart"}, resp.Models)
	assert.Equal(t, "fast", resp.Default)

	post := httptest.NewRequest(http.MethodPost, "/v1/models", nil)
	postRec := httptest.NewRecorder()
	h.HandleModels(postRec, post)
	assert.Equal(t, http.StatusMethodNotAllowed, postRec.Code)
}

func TestHandleUsage(t *testing.T) {
	usage := &stubUsage{
		snapshot: map[string]domain.Summary{
			"gpt-4o-mini": {Model: "gpt-4o-mini", Requests: 12, TotalTokens: 3400, TotalCostUSD: 0.042},
		},
		total: 0.042,
	}
	h := newTestHandler(&stubService{}, usage)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	rec := httptest.NewRecorder()
	h.HandleUsage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Models       map[string]domain.Summary `json:"models"`
		TotalCostUSD float64                   `json:"total_cost_usd"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Models, "gpt-4o-mini")
	assert.Equal(t, uint64(12), resp.Models["gpt-4o-mini"].Requests)
	assert.InDelta(t, 0.042, resp.TotalCostUSD, 1e-9)

	del := httptest.NewRequest(http.MethodDelete, "/v1/usage", nil)
	delRec := httptest.NewRecorder()
	h.HandleUsage(delRec, del)
	assert.Equal(t, http.StatusMethodNotAllowed, delRec.Code)
}

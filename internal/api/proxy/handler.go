package proxy

import (
	"context"
	"encoding/json"
	"net/http"

	"hermes/internal/adapters/providers"
	domain "hermes/internal/domain/usage"
	"hermes/internal/router"
	proxysvc "hermes/internal/services/proxy"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Routing is the proxy surface exposed over HTTP.
type Routing interface {
	Generate(ctx context.Context, req router.GenerateRequest) (*proxysvc.GenerateResponse, error)
	Classify(ctx context.Context, req router.ClassifyRequest) (*proxysvc.ClassifyResponse, error)
	Embed(ctx context.Context, req router.EmbedRequest) (*proxysvc.EmbedResponse, error)
	ListModels() []string
	DefaultModel() string
}

// UsageReader exposes accumulated usage counters.
type UsageReader interface {
	Snapshot() map[string]domain.Summary
	TotalCost() float64
}

// Handler serves the /v1 routing endpoints
type Handler struct {
	svc   Routing
	usage UsageReader
	log   *logger.Logger
}

// NewHandler creates a proxy API handler
func NewHandler(svc Routing, usage UsageReader, log *logger.Logger) *Handler {
	return &Handler{
		svc:   svc,
		usage: usage,
		log:   log.With("component", "proxy_api"),
	}
}

type generateRequest struct {
	Prompt  string                 `json:"prompt"`
	Model   string                 `json:"model,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type classifyRequest struct {
	Text    string                 `json:"text"`
	Model   string                 `json:"model,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type embedRequest struct {
	Text    string                 `json:"text"`
	Model   string                 `json:"model,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type modelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default,omitempty"`
}

type usageResponse struct {
	Models       map[string]domain.Summary `json:"models"`
	TotalCostUSD float64                   `json:"total_cost_usd"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleGenerate handles POST /v1/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "malformed JSON body"))
		return
	}

	resp, err := h.svc.Generate(r.Context(), router.GenerateRequest{
		Prompt:    req.Prompt,
		ModelName: req.Model,
		Options:   req.Options,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleClassify handles POST /v1/classify
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "malformed JSON body"))
		return
	}

	resp, err := h.svc.Classify(r.Context(), router.ClassifyRequest{
		Text:      req.Text,
		ModelName: req.Model,
		Options:   req.Options,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleEmbed handles POST /v1/embed
func (h *Handler) HandleEmbed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "malformed JSON body"))
		return
	}

	resp, err := h.svc.Embed(r.Context(), router.EmbedRequest{
		Text:      req.Text,
		ModelName: req.Model,
		Options:   req.Options,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleModels handles GET /v1/models
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	h.writeJSON(w, http.StatusOK, modelsResponse{
		Models:  h.svc.ListModels(),
		Default: h.svc.DefaultModel(),
	})
}

// HandleUsage handles GET /v1/usage
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	h.writeJSON(w, http.StatusOK, usageResponse{
		Models:       h.usage.Snapshot(),
		TotalCostUSD: h.usage.TotalCost(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Errorw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)

	if status >= http.StatusInternalServerError {
		h.log.Errorw("Request failed", "status", status, "error", err)
	} else {
		h.log.Debugw("Request rejected", "status", status, "error", err)
	}

	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFromError maps routing failures onto the HTTP surface. Provider
// failures are gateway errors: the proxy itself worked, the upstream did not.
func statusFromError(err error) int {
	var transportErr *providers.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}

	var remoteErr *providers.RemoteError
	if errors.As(err, &remoteErr) {
		return http.StatusBadGateway
	}

	var shapeErr *providers.ResponseShapeError
	if errors.As(err, &shapeErr) {
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, errors.ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrNoDefaultModel),
		errors.Is(err, errors.ErrInvalidInput),
		errors.Is(err, errors.ErrUnsupportedCapability):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	}

	return http.StatusInternalServerError
}

package proxy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"hermes/internal/adapters/providers"
	domain "hermes/internal/domain/usage"
	"hermes/internal/metrics"
	"hermes/internal/router"
	"hermes/internal/services/respcache"
	usagesvc "hermes/internal/services/usage"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// GenerateResponse is the proxied completion returned to clients.
type GenerateResponse struct {
	Text      string           `json:"text"`
	Model     string           `json:"model"`
	RequestID string           `json:"request_id"`
	Usage     *providers.Usage `json:"usage,omitempty"`
	Raw       json.RawMessage  `json:"raw,omitempty"`
	Cached    bool             `json:"cached,omitempty"`
}

// ClassifyResponse is the proxied classification returned to clients.
type ClassifyResponse struct {
	Labels    []providers.Label `json:"labels"`
	Model     string            `json:"model"`
	RequestID string            `json:"request_id"`
}

// EmbedResponse is the proxied embedding returned to clients.
type EmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	RequestID string    `json:"request_id"`
}

// Service orchestrates proxied calls: routing, response caching, metrics
// and usage accounting. Routing errors pass through untouched so callers
// can map them onto their own error surface.
type Service struct {
	router router.Routing
	usage  *usagesvc.Service
	cache  *respcache.Cache
	log    *logger.Logger
}

// NewService creates a proxy service. The cache is optional.
func NewService(rt router.Routing, usage *usagesvc.Service, cache *respcache.Cache) *Service {
	return &Service{
		router: rt,
		usage:  usage,
		cache:  cache,
		log:    logger.Get().With("component", "proxy_service"),
	}
}

// Generate proxies a completion request. Cached responses are returned
// without touching the provider.
func (s *Service) Generate(ctx context.Context, req router.GenerateRequest) (*GenerateResponse, error) {
	requestID := uuid.NewString()

	model, err := s.router.Resolve(req.ModelName)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	if s.cache != nil {
		key := respcache.Key(model, req.Prompt, req.Options)
		if entry, ok := s.cache.Get(ctx, key); ok {
			metrics.RecordCacheEvent(model, true)
			s.recordUsage(cacheHitRecord(requestID, model, s.providerKind(model), start))

			return &GenerateResponse{
				Text:      entry.Text,
				Model:     model,
				RequestID: requestID,
				Usage:     entry.Usage,
				Raw:       entry.Raw,
				Cached:    true,
			}, nil
		}
		metrics.RecordCacheEvent(model, false)
	}

	result, err := s.router.Generate(ctx, req)
	latency := time.Since(start)

	rec := s.buildRecord(requestID, model, domain.OperationGenerate, start, latency, err)
	if err == nil && result.Usage != nil {
		s.applyUsage(rec, model, result.Usage)
	}
	s.recordMetrics(model, domain.OperationGenerate, latency, rec, err)
	s.recordUsage(rec)

	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, respcache.Key(model, req.Prompt, req.Options), &respcache.Entry{
			Model: model,
			Text:  result.Text,
			Raw:   result.Raw,
			Usage: result.Usage,
		})
	}

	return &GenerateResponse{
		Text:      result.Text,
		Model:     model,
		RequestID: requestID,
		Usage:     result.Usage,
		Raw:       result.Raw,
	}, nil
}

// Classify proxies a classification request.
func (s *Service) Classify(ctx context.Context, req router.ClassifyRequest) (*ClassifyResponse, error) {
	requestID := uuid.NewString()

	model, err := s.router.Resolve(req.ModelName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.router.Classify(ctx, req)
	latency := time.Since(start)

	rec := s.buildRecord(requestID, model, domain.OperationClassify, start, latency, err)
	s.recordMetrics(model, domain.OperationClassify, latency, rec, err)
	s.recordUsage(rec)

	if err != nil {
		return nil, err
	}

	return &ClassifyResponse{
		Labels:    result.Labels,
		Model:     model,
		RequestID: requestID,
	}, nil
}

// Embed proxies an embedding request.
func (s *Service) Embed(ctx context.Context, req router.EmbedRequest) (*EmbedResponse, error) {
	requestID := uuid.NewString()

	model, err := s.router.Resolve(req.ModelName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.router.Embed(ctx, req)
	latency := time.Since(start)

	rec := s.buildRecord(requestID, model, domain.OperationEmbed, start, latency, err)
	s.recordMetrics(model, domain.OperationEmbed, latency, rec, err)
	s.recordUsage(rec)

	if err != nil {
		return nil, err
	}

	return &EmbedResponse{
		Embedding: result.Embedding,
		Model:     model,
		RequestID: requestID,
	}, nil
}

// ListModels returns configured model names in configuration order.
func (s *Service) ListModels() []string {
	return s.router.ListModels()
}

// DefaultModel returns the configured default model name, if any.
func (s *Service) DefaultModel() string {
	return s.router.DefaultModel()
}

func (s *Service) providerKind(model string) string {
	if cfg, ok := s.router.ModelConfig(model); ok {
		return cfg.Kind.String()
	}
	return ""
}

func (s *Service) buildRecord(requestID, model, operation string, start time.Time, latency time.Duration, err error) *domain.Record {
	rec := &domain.Record{
		Timestamp:    start,
		EventID:      uuid.NewString(),
		RequestID:    requestID,
		Model:        model,
		ProviderKind: s.providerKind(model),
		Operation:    operation,
		Status:       domain.StatusOK,
		LatencyMs:    uint32(latency.Milliseconds()),
		CreatedAt:    time.Now(),
	}

	if err != nil {
		rec.Status = domain.StatusError
		rec.ErrorKind = errorKind(err)
	}

	return rec
}

// applyUsage fills token counts and derives cost from the model's pricing.
func (s *Service) applyUsage(rec *domain.Record, model string, u *providers.Usage) {
	rec.PromptTokens = uint32(u.PromptTokens)
	rec.CompletionTokens = uint32(u.CompletionTokens)
	rec.TotalTokens = uint32(u.TotalTokens)

	cfg, ok := s.router.ModelConfig(model)
	if !ok {
		return
	}

	rec.InputCostUSD, rec.OutputCostUSD = cfg.Pricing.Cost(u.PromptTokens, u.CompletionTokens)
	rec.TotalCostUSD = rec.InputCostUSD + rec.OutputCostUSD
}

func (s *Service) recordMetrics(model, operation string, latency time.Duration, rec *domain.Record, err error) {
	metrics.RecordRequest(model, operation, latency, err)

	if err != nil {
		metrics.RecordProviderError(model, rec.ErrorKind)
		return
	}

	metrics.RecordTokens(model, int(rec.PromptTokens), int(rec.CompletionTokens))
	metrics.RecordCost(model, rec.TotalCostUSD)
}

func (s *Service) recordUsage(rec *domain.Record) {
	if s.usage == nil {
		return
	}
	s.usage.Record(rec)
}

// cacheHitRecord accounts for a request served from cache. Tokens and cost
// stay zero: the provider was not called, and the original call already
// paid for them.
func cacheHitRecord(requestID, model, kind string, start time.Time) *domain.Record {
	return &domain.Record{
		Timestamp:    start,
		EventID:      uuid.NewString(),
		RequestID:    requestID,
		Model:        model,
		ProviderKind: kind,
		Operation:    domain.OperationGenerate,
		Status:       domain.StatusOK,
		CacheHit:     true,
		LatencyMs:    uint32(time.Since(start).Milliseconds()),
		CreatedAt:    time.Now(),
	}
}

// errorKind buckets a routing failure for metrics and usage records.
func errorKind(err error) string {
	var transportErr *providers.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout() {
			return "timeout"
		}
		return "transport"
	}

	var remoteErr *providers.RemoteError
	if errors.As(err, &remoteErr) {
		return "remote"
	}

	var shapeErr *providers.ResponseShapeError
	if errors.As(err, &shapeErr) {
		return "shape"
	}

	if errors.Is(err, errors.ErrRateLimitExceeded) {
		return "rate_limited"
	}

	if errors.Is(err, errors.ErrUnsupportedCapability) {
		return "unsupported"
	}

	return "other"
}

package router

import (
	"context"

	"hermes/internal/adapters/providers"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Routing is the call surface shared by the base router and its
// decorators.
type Routing interface {
	// Generate produces a completion via the resolved model.
	Generate(ctx context.Context, req GenerateRequest) (*providers.GenerateResult, error)

	// Classify labels text via the resolved model.
	Classify(ctx context.Context, req ClassifyRequest) (*providers.ClassifyResult, error)

	// Embed produces an embedding via the resolved model.
	Embed(ctx context.Context, req EmbedRequest) (*providers.EmbedResult, error)

	// Resolve maps a requested model name (possibly empty) to the
	// configured model that would serve it.
	Resolve(modelName string) (string, error)

	// ListModels returns configured model names in configuration order.
	ListModels() []string

	// DefaultModel returns the configured default model name, if any.
	DefaultModel() string

	// ModelConfig returns the configuration bound to a model name.
	ModelConfig(name string) (providers.ModelConfig, bool)
}

// GenerateRequest is a routed completion request.
type GenerateRequest struct {
	// Prompt is the user input. Must be non-empty.
	Prompt string

	// ModelName selects the configured model. Empty means the default.
	ModelName string

	// Options override the model's default parameters key by key.
	Options map[string]interface{}
}

// ClassifyRequest is a routed classification request.
type ClassifyRequest struct {
	Text      string
	ModelName string
	Options   map[string]interface{}
}

// EmbedRequest is a routed embedding request.
type EmbedRequest struct {
	Text      string
	ModelName string
	Options   map[string]interface{}
}

// Config holds the router's model table.
type Config struct {
	// Models in configuration order. Names must be unique.
	Models []providers.ModelConfig

	// DefaultModel serves requests that name no model. Optional, but must
	// reference a configured model when set.
	DefaultModel string
}

// Ensure Router implements Routing
var _ Routing = (*Router)(nil)

// Router resolves model names to bound adapters and dispatches calls.
// All maps are built in New and never written again, so concurrent calls
// read them without locking.
type Router struct {
	names        []string
	adapters     map[string]providers.Adapter
	configs      map[string]providers.ModelConfig
	defaultModel string
	log          *logger.Logger
}

// New validates the configuration and builds every adapter eagerly through
// the registry. Duplicate names, unknown provider kinds and a dangling
// default model are all load-time failures, never call-time ones.
func New(cfg Config, registry *providers.Registry) (*Router, error) {
	if len(cfg.Models) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no models configured")
	}

	r := &Router{
		names:        make([]string, 0, len(cfg.Models)),
		adapters:     make(map[string]providers.Adapter, len(cfg.Models)),
		configs:      make(map[string]providers.ModelConfig, len(cfg.Models)),
		defaultModel: cfg.DefaultModel,
		log:          logger.Get().With("component", "router"),
	}

	for _, mc := range cfg.Models {
		if mc.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "model with empty name")
		}
		if _, dup := r.adapters[mc.Name]; dup {
			return nil, errors.Wrapf(errors.ErrAlreadyExists, "duplicate model name %q", mc.Name)
		}

		adapter, err := registry.Create(mc)
		if err != nil {
			return nil, errors.Wrapf(err, "model %q", mc.Name)
		}

		r.names = append(r.names, mc.Name)
		r.adapters[mc.Name] = adapter
		r.configs[mc.Name] = mc
	}

	if cfg.DefaultModel != "" {
		if _, ok := r.adapters[cfg.DefaultModel]; !ok {
			return nil, errors.Wrapf(errors.ErrUnknownModel, "default model %q not configured", cfg.DefaultModel)
		}
	}

	r.log.Infof("router configured with %d models (default: %s)", len(r.names), orNone(cfg.DefaultModel))

	return r, nil
}

// Generate resolves the model and delegates to its adapter. Adapter errors
// propagate unchanged.
func (r *Router) Generate(ctx context.Context, req GenerateRequest) (*providers.GenerateResult, error) {
	if req.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty prompt")
	}

	name, adapter, err := r.resolve(req.ModelName)
	if err != nil {
		return nil, err
	}

	r.log.Debugf("dispatching generate to model %s", name)

	return adapter.Generate(ctx, providers.GenerateRequest{
		Prompt:  req.Prompt,
		Options: req.Options,
	})
}

// Classify resolves the model and delegates to its adapter, failing when
// the adapter does not advertise classification.
func (r *Router) Classify(ctx context.Context, req ClassifyRequest) (*providers.ClassifyResult, error) {
	if req.Text == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty text")
	}

	name, adapter, err := r.resolve(req.ModelName)
	if err != nil {
		return nil, err
	}

	classifier, ok := adapter.(providers.Classifier)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedCapability, "model %q does not support classification", name)
	}

	r.log.Debugf("dispatching classify to model %s", name)

	return classifier.Classify(ctx, providers.ClassifyRequest{
		Text:    req.Text,
		Options: req.Options,
	})
}

// Embed resolves the model and delegates to its adapter, failing when the
// adapter does not advertise embeddings.
func (r *Router) Embed(ctx context.Context, req EmbedRequest) (*providers.EmbedResult, error) {
	if req.Text == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty text")
	}

	name, adapter, err := r.resolve(req.ModelName)
	if err != nil {
		return nil, err
	}

	embedder, ok := adapter.(providers.Embedder)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedCapability, "model %q does not support embeddings", name)
	}

	r.log.Debugf("dispatching embed to model %s", name)

	return embedder.Embed(ctx, providers.EmbedRequest{
		Text:    req.Text,
		Options: req.Options,
	})
}

// Resolve maps a requested model name to the configured model serving it.
func (r *Router) Resolve(modelName string) (string, error) {
	name, _, err := r.resolve(modelName)
	return name, err
}

// ListModels returns configured model names in configuration order.
func (r *Router) ListModels() []string {
	return append([]string(nil), r.names...)
}

// DefaultModel returns the configured default model name, if any.
func (r *Router) DefaultModel() string {
	return r.defaultModel
}

// ModelConfig returns the configuration bound to a model name.
func (r *Router) ModelConfig(name string) (providers.ModelConfig, bool) {
	cfg, ok := r.configs[name]
	return cfg, ok
}

// resolve is exact-match only: no fuzzy matching, no prefixes.
func (r *Router) resolve(modelName string) (string, providers.Adapter, error) {
	name := modelName
	if name == "" {
		name = r.defaultModel
	}
	if name == "" {
		return "", nil, errors.Wrap(errors.ErrNoDefaultModel, "no model specified")
	}

	adapter, ok := r.adapters[name]
	if !ok {
		return "", nil, errors.Wrapf(errors.ErrUnknownModel, "model %q", name)
	}

	return name, adapter, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

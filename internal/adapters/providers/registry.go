package providers

import (
	"sort"

	"hermes/pkg/errors"
)

// Factory builds an Adapter bound to one model configuration.
type Factory func(cfg ModelConfig) (Adapter, error)

// Registry maps provider kinds to adapter factories. All registration
// happens at process startup; after that the map is read-only and lookups
// take no lock.
type Registry struct {
	factories map[ProviderKind]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ProviderKind]Factory),
	}
}

// Register binds a factory to a provider kind. Registering the same kind
// twice is a programming error and fails.
func (r *Registry) Register(kind ProviderKind, factory Factory) error {
	if kind == "" {
		return errors.Wrap(errors.ErrInvalidInput, "empty provider kind")
	}
	if factory == nil {
		return errors.Wrapf(errors.ErrInvalidInput, "nil factory for provider kind %s", kind)
	}
	if _, exists := r.factories[kind]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "provider kind %s already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Create builds an adapter for the model configuration's kind.
func (r *Registry) Create(cfg ModelConfig) (Adapter, error) {
	factory, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownProviderKind, "provider kind %q", cfg.Kind)
	}
	return factory(cfg)
}

// Has reports whether a factory is registered for the kind.
func (r *Registry) Has(kind ProviderKind) bool {
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered provider kinds in sorted order.
func (r *Registry) Kinds() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Deps carries shared dependencies the built-in adapter factories close
// over.
type Deps struct {
	// Limiters builds per-model rate limiters. Nil disables rate limiting.
	Limiters *RateLimiterFactory
}

func (d Deps) limiterFor(cfg ModelConfig) RateLimiter {
	if d.Limiters == nil {
		return NewNoOpLimiter()
	}
	return d.Limiters.Create(cfg.Name, cfg.RateLimit)
}

// DefaultRegistry returns a registry with every built-in provider kind
// registered.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()

	// Built-in registrations cannot collide on a fresh registry.
	_ = r.Register(KindOpenAIChat, func(cfg ModelConfig) (Adapter, error) {
		return NewOpenAIAdapter(cfg, deps.limiterFor(cfg)), nil
	})
	_ = r.Register(KindAnthropicMessages, func(cfg ModelConfig) (Adapter, error) {
		return NewAnthropicAdapter(cfg, deps.limiterFor(cfg)), nil
	})
	_ = r.Register(KindGeminiGenerate, func(cfg ModelConfig) (Adapter, error) {
		return NewGeminiAdapter(cfg, deps.limiterFor(cfg)), nil
	})
	_ = r.Register(KindHuggingFaceInference, func(cfg ModelConfig) (Adapter, error) {
		return NewHuggingFaceAdapter(cfg, deps.limiterFor(cfg)), nil
	})
	_ = r.Register(KindLocalCompletion, func(cfg ModelConfig) (Adapter, error) {
		return NewLocalAdapter(cfg, deps.limiterFor(cfg)), nil
	})

	return r
}

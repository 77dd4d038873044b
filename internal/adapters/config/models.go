package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hermes/internal/adapters/providers"
	"hermes/pkg/errors"
)

// ModelsFile is the on-disk model definitions document.
type ModelsFile struct {
	DefaultModel string       `yaml:"default_model"`
	Models       []ModelEntry `yaml:"models"`
}

// ModelEntry is one model definition. Provider kind validity is decided by
// the adapter registry, not here, so registering new kinds needs no loader
// change.
type ModelEntry struct {
	Name      string                 `yaml:"name"`
	Provider  string                 `yaml:"provider"`
	Endpoint  string                 `yaml:"endpoint"`
	APIKey    string                 `yaml:"api_key"`
	APIKeyEnv string                 `yaml:"api_key_env"`
	Params    map[string]interface{} `yaml:"params"`
	Timeout   string                 `yaml:"timeout"`
	RateLimit RateLimitEntry         `yaml:"rate_limit"`
	Pricing   PricingEntry           `yaml:"pricing"`
}

// RateLimitEntry throttles one model's outbound calls.
type RateLimitEntry struct {
	Enabled      bool    `yaml:"enabled"`
	ReqPerMinute float64 `yaml:"req_per_minute"`
	Burst        int     `yaml:"burst"`
}

// PricingEntry holds per-1K-token costs in USD for usage accounting.
type PricingEntry struct {
	InputCostPer1K  float64 `yaml:"input_cost_per_1k"`
	OutputCostPer1K float64 `yaml:"output_cost_per_1k"`
}

// LoadModels reads, parses and validates the model definitions file.
func LoadModels(path string) ([]providers.ModelConfig, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "read models file %s", path)
	}

	return ParseModels(data)
}

// ParseModels decodes and validates a model definitions document,
// resolving env-indirect API keys. Returns the model configurations in
// document order plus the default model name.
func ParseModels(data []byte) ([]providers.ModelConfig, string, error) {
	var file ModelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", errors.Wrap(err, "parse models file")
	}

	if len(file.Models) == 0 {
		return nil, "", errors.Wrap(errors.ErrInvalidInput, "models file defines no models")
	}

	seen := make(map[string]bool, len(file.Models))
	configs := make([]providers.ModelConfig, 0, len(file.Models))

	for i, entry := range file.Models {
		if entry.Name == "" {
			return nil, "", errors.Wrapf(errors.ErrInvalidInput, "model #%d: missing name", i)
		}
		if seen[entry.Name] {
			return nil, "", errors.Wrapf(errors.ErrAlreadyExists, "duplicate model name %q", entry.Name)
		}
		seen[entry.Name] = true

		if entry.Provider == "" {
			return nil, "", errors.Wrapf(errors.ErrInvalidInput, "model %q: missing provider", entry.Name)
		}
		if entry.Endpoint == "" {
			return nil, "", errors.Wrapf(errors.ErrInvalidInput, "model %q: missing endpoint", entry.Name)
		}

		apiKey := entry.APIKey
		if apiKey == "" && entry.APIKeyEnv != "" {
			apiKey = os.Getenv(entry.APIKeyEnv)
			if apiKey == "" {
				return nil, "", errors.Wrapf(errors.ErrInvalidInput,
					"model %q: api_key_env %s is not set", entry.Name, entry.APIKeyEnv)
			}
		}

		var timeout time.Duration
		if entry.Timeout != "" {
			parsed, err := time.ParseDuration(entry.Timeout)
			if err != nil || parsed <= 0 {
				return nil, "", errors.Wrapf(errors.ErrInvalidInput,
					"model %q: invalid timeout %q", entry.Name, entry.Timeout)
			}
			timeout = parsed
		}

		configs = append(configs, providers.ModelConfig{
			Name:     entry.Name,
			Kind:     providers.ProviderKind(entry.Provider),
			Endpoint: entry.Endpoint,
			APIKey:   apiKey,
			Params:   entry.Params,
			Timeout:  timeout,
			RateLimit: providers.RateLimitConfig{
				Enabled:      entry.RateLimit.Enabled,
				ReqPerMinute: entry.RateLimit.ReqPerMinute,
				Burst:        entry.RateLimit.Burst,
			},
			Pricing: providers.PricingConfig{
				InputCostPer1K:  entry.Pricing.InputCostPer1K,
				OutputCostPer1K: entry.Pricing.OutputCostPer1K,
			},
		})
	}

	if file.DefaultModel != "" && !seen[file.DefaultModel] {
		return nil, "", errors.Wrapf(errors.ErrUnknownModel, "default model %q not defined", file.DefaultModel)
	}

	return configs, file.DefaultModel, nil
}

package providers

import (
	"encoding/json"
	"testing"
)

func TestMergeParams(t *testing.T) {
	base := map[string]interface{}{"a": 1, "b": "keep"}
	overrides := map[string]interface{}{"a": 2, "c": true}

	merged := mergeParams(base, overrides)

	if merged["a"] != 2 {
		t.Errorf("Override should win, got %v", merged["a"])
	}
	if merged["b"] != "keep" {
		t.Errorf("Base-only key should survive, got %v", merged["b"])
	}
	if merged["c"] != true {
		t.Errorf("Override-only key should appear, got %v", merged["c"])
	}

	// Inputs stay untouched.
	if base["a"] != 1 {
		t.Errorf("Base map mutated: %v", base["a"])
	}
	if len(overrides) != 2 {
		t.Errorf("Overrides map mutated: %v", overrides)
	}
}

func TestMergeParams_NilInputs(t *testing.T) {
	if got := mergeParams(nil, nil); len(got) != 0 {
		t.Errorf("Expected empty map, got %v", got)
	}

	merged := mergeParams(nil, map[string]interface{}{"k": "v"})
	if merged["k"] != "v" {
		t.Errorf("Expected override to survive nil base, got %v", merged)
	}
}

func TestPopString(t *testing.T) {
	params := map[string]interface{}{"model": "gpt-4", "count": 3}

	if got := popString(params, "model", "fallback"); got != "gpt-4" {
		t.Errorf("Expected gpt-4, got %q", got)
	}
	if _, still := params["model"]; still {
		t.Error("popString should remove the key")
	}
	if got := popString(params, "missing", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback for missing key, got %q", got)
	}
	if got := popString(params, "count", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback for non-string value, got %q", got)
	}
}

func TestPopInt(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
	}{
		{"int", 42, 42},
		{"int64", int64(43), 43},
		{"float64 from json", float64(44), 44},
		{"json.Number", json.Number("45"), 45},
		{"wrong type", "nope", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]interface{}{"max_tokens": tt.value}
			if got := popInt(params, "max_tokens", 7); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}

	if got := popInt(map[string]interface{}{}, "max_tokens", 7); got != 7 {
		t.Errorf("Expected fallback, got %d", got)
	}
}

func TestPopFloat(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  float64
	}{
		{"float64", 0.5, 0.5},
		{"int from yaml", 1, 1.0},
		{"json.Number", json.Number("0.25"), 0.25},
		{"wrong type", "nope", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]interface{}{"temperature": tt.value}
			if got := popFloat(params, "temperature", 0.7); got != tt.want {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestPricingConfig_Cost(t *testing.T) {
	pricing := PricingConfig{InputCostPer1K: 0.003, OutputCostPer1K: 0.015}

	input, output := pricing.Cost(2000, 500)

	if input != 0.006 {
		t.Errorf("Expected input cost 0.006, got %f", input)
	}
	if output != 0.0075 {
		t.Errorf("Expected output cost 0.0075, got %f", output)
	}

	input, output = PricingConfig{}.Cost(1000, 1000)
	if input != 0 || output != 0 {
		t.Errorf("Zero pricing should cost nothing, got %f/%f", input, output)
	}
}

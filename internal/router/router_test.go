package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"hermes/internal/adapters/providers"
	"hermes/pkg/errors"
)

// stubAdapter answers Generate with a canned result and counts calls.
type stubAdapter struct {
	mu     sync.Mutex
	calls  int
	result *providers.GenerateResult
	err    error
}

func (s *stubAdapter) Generate(ctx context.Context, req providers.GenerateRequest) (*providers.GenerateResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fullStubAdapter additionally advertises classification and embeddings.
type fullStubAdapter struct {
	stubAdapter
	classifyResult *providers.ClassifyResult
	embedResult    *providers.EmbedResult
}

func (s *fullStubAdapter) Classify(ctx context.Context, req providers.ClassifyRequest) (*providers.ClassifyResult, error) {
	return s.classifyResult, nil
}

func (s *fullStubAdapter) Embed(ctx context.Context, req providers.EmbedRequest) (*providers.EmbedResult, error) {
	return s.embedResult, nil
}

// stubRegistry registers each adapter under its own kind.
func stubRegistry(t *testing.T, adapters map[providers.ProviderKind]providers.Adapter) *providers.Registry {
	t.Helper()
	r := providers.NewRegistry()
	for kind, adapter := range adapters {
		a := adapter
		err := r.Register(kind, func(cfg providers.ModelConfig) (providers.Adapter, error) {
			return a, nil
		})
		if err != nil {
			t.Fatalf("Register %s failed: %v", kind, err)
		}
	}
	return r
}

func stubModel(name string, kind providers.ProviderKind) providers.ModelConfig {
	return providers.ModelConfig{Name: name, Kind: kind, Endpoint: "http://stub"}
}

func TestNew_NoModels(t *testing.T) {
	_, err := New(Config{}, providers.NewRegistry())
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty model table, got %v", err)
	}
}

func TestNew_EmptyModelName(t *testing.T) {
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"stub": &stubAdapter{},
	})

	_, err := New(Config{Models: []providers.ModelConfig{stubModel("", "stub")}}, registry)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty name, got %v", err)
	}
}

func TestNew_DuplicateModelName(t *testing.T) {
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"stub": &stubAdapter{},
	})

	cfg := Config{Models: []providers.ModelConfig{
		stubModel("twin", "stub"),
		stubModel("twin", "stub"),
	}}
	_, err := New(cfg, registry)
	if !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists for duplicate name, got %v", err)
	}
}

func TestNew_UnknownProviderKind(t *testing.T) {
	cfg := Config{Models: []providers.ModelConfig{stubModel("m", "mystery")}}

	_, err := New(cfg, providers.NewRegistry())
	if !errors.Is(err, errors.ErrUnknownProviderKind) {
		t.Errorf("Expected ErrUnknownProviderKind, got %v", err)
	}
}

func TestNew_DanglingDefaultModel(t *testing.T) {
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"stub": &stubAdapter{},
	})

	cfg := Config{
		Models:       []providers.ModelConfig{stubModel("real", "stub")},
		DefaultModel: "ghost",
	}
	_, err := New(cfg, registry)
	if !errors.Is(err, errors.ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel for dangling default, got %v", err)
	}
}

func TestRouter_ListModels(t *testing.T) {
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"stub": &stubAdapter{},
	})

	cfg := Config{Models: []providers.ModelConfig{
		stubModel("zeta", "stub"),
		stubModel("alpha", "stub"),
		stubModel("mid", "stub"),
	}}
	r, err := New(cfg, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	names := r.ListModels()
	want := []string{"zeta", "alpha", "mid"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d models, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Position %d: expected %q, got %q", i, name, names[i])
		}
	}

	// The returned slice is a copy.
	names[0] = "mutated"
	if r.ListModels()[0] != "zeta" {
		t.Error("Mutating the returned slice should not affect the router")
	}
}

func TestRouter_Resolve(t *testing.T) {
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"stub": &stubAdapter{},
	})

	r, err := New(Config{
		Models:       []providers.ModelConfig{stubModel("main", "stub"), stubModel("other", "stub")},
		DefaultModel: "main",
	}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if name, err := r.Resolve("other"); err != nil || name != "other" {
		t.Errorf("Explicit name: got (%q, %v)", name, err)
	}
	if name, err := r.Resolve(""); err != nil || name != "main" {
		t.Errorf("Empty name should fall back to the default: got (%q, %v)", name, err)
	}
	if _, err := r.Resolve("ghost"); !errors.Is(err, errors.ErrUnknownModel) {
		t.Errorf("Unknown name: expected ErrUnknownModel, got %v", err)
	}
	if r.DefaultModel() != "main" {
		t.Errorf("DefaultModel() = %q", r.DefaultModel())
	}
}

func TestRouter_ResolveWithoutDefault(t *testing.T) {
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"stub": &stubAdapter{},
	})

	r, err := New(Config{Models: []providers.ModelConfig{stubModel("only", "stub")}}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := r.Resolve(""); !errors.Is(err, errors.ErrNoDefaultModel) {
		t.Errorf("Expected ErrNoDefaultModel, got %v", err)
	}
}

func TestRouter_GenerateEmptyPrompt(t *testing.T) {
	stub := &stubAdapter{result: &providers.GenerateResult{Text: "never"}}
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{"stub": stub})

	r, err := New(Config{
		Models:       []providers.ModelConfig{stubModel("m", "stub")},
		DefaultModel: "m",
	}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = r.Generate(context.Background(), GenerateRequest{Prompt: ""})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if stub.callCount() != 0 {
		t.Error("Adapter should not be called for an invalid request")
	}
}

func TestRouter_GenerateDispatchesByName(t *testing.T) {
	first := &stubAdapter{result: &providers.GenerateResult{Text: "from first"}}
	second := &stubAdapter{result: &providers.GenerateResult{Text: "from second"}}
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"kind-a": first,
		"kind-b": second,
	})

	r, err := New(Config{
		Models: []providers.ModelConfig{
			stubModel("model-a", "kind-a"),
			stubModel("model-b", "kind-b"),
		},
		DefaultModel: "model-a",
	}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := r.Generate(context.Background(), GenerateRequest{Prompt: "hi", ModelName: "model-b"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Text != "from second" {
		t.Errorf("Expected dispatch to model-b, got %q", result.Text)
	}

	result, err = r.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate via default failed: %v", err)
	}
	if result.Text != "from first" {
		t.Errorf("Expected dispatch to the default model, got %q", result.Text)
	}
}

func TestRouter_AdapterErrorPropagatesUnchanged(t *testing.T) {
	remoteErr := &providers.RemoteError{Kind: "stub", StatusCode: 500, Body: "boom"}
	stub := &stubAdapter{err: remoteErr}
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{"stub": stub})

	r, err := New(Config{
		Models:       []providers.ModelConfig{stubModel("m", "stub")},
		DefaultModel: "m",
	}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = r.Generate(context.Background(), GenerateRequest{Prompt: "hi"})

	var got *providers.RemoteError
	if !errors.As(err, &got) {
		t.Fatalf("Expected a RemoteError, got %v", err)
	}
	if got != remoteErr {
		t.Error("Adapter error should propagate without rewrapping")
	}
}

func TestRouter_CapabilityChecks(t *testing.T) {
	generateOnly := &stubAdapter{result: &providers.GenerateResult{Text: "ok"}}
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{"stub": generateOnly})

	r, err := New(Config{
		Models:       []providers.ModelConfig{stubModel("m", "stub")},
		DefaultModel: "m",
	}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := r.Classify(context.Background(), ClassifyRequest{Text: "t"}); !errors.Is(err, errors.ErrUnsupportedCapability) {
		t.Errorf("Classify on a generate-only model: expected ErrUnsupportedCapability, got %v", err)
	}
	if _, err := r.Embed(context.Background(), EmbedRequest{Text: "t"}); !errors.Is(err, errors.ErrUnsupportedCapability) {
		t.Errorf("Embed on a generate-only model: expected ErrUnsupportedCapability, got %v", err)
	}
}

func TestRouter_ClassifyAndEmbed(t *testing.T) {
	full := &fullStubAdapter{
		classifyResult: &providers.ClassifyResult{Labels: []providers.Label{{Name: "POSITIVE", Score: 0.97}}},
		embedResult:    &providers.EmbedResult{Embedding: []float32{0.1, 0.2}},
	}
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{"stub": full})

	r, err := New(Config{
		Models:       []providers.ModelConfig{stubModel("m", "stub")},
		DefaultModel: "m",
	}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	labels, err := r.Classify(context.Background(), ClassifyRequest{Text: "nice"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(labels.Labels) != 1 || labels.Labels[0].Name != "POSITIVE" {
		t.Errorf("Unexpected classify result: %+v", labels)
	}

	embedding, err := r.Embed(context.Background(), EmbedRequest{Text: "vector me"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embedding.Embedding) != 2 {
		t.Errorf("Unexpected embedding length: %d", len(embedding.Embedding))
	}

	if _, err := r.Classify(context.Background(), ClassifyRequest{Text: ""}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Empty text: expected ErrInvalidInput, got %v", err)
	}
	if _, err := r.Embed(context.Background(), EmbedRequest{Text: ""}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Empty text: expected ErrInvalidInput, got %v", err)
	}
}

func TestRouter_ModelConfig(t *testing.T) {
	registry := stubRegistry(t, map[providers.ProviderKind]providers.Adapter{
		"stub": &stubAdapter{},
	})

	mc := stubModel("m", "stub")
	mc.Pricing = providers.PricingConfig{InputCostPer1K: 0.001, OutputCostPer1K: 0.002}

	r, err := New(Config{Models: []providers.ModelConfig{mc}}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, ok := r.ModelConfig("m")
	if !ok {
		t.Fatal("ModelConfig should find a configured model")
	}
	if got.Pricing.InputCostPer1K != 0.001 {
		t.Errorf("Unexpected pricing: %+v", got.Pricing)
	}
	if _, ok := r.ModelConfig("ghost"); ok {
		t.Error("ModelConfig should not find an unconfigured model")
	}
}

// openaiStubServer answers the chat completions wire shape with a fixed
// completion text.
func openaiStubServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": text}},
			},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_EndToEndConcurrent(t *testing.T) {
	fastSrv := openaiStubServer(t, "answer from fast")
	smartSrv := openaiStubServer(t, "answer from smart")

	registry := providers.DefaultRegistry(providers.Deps{})

	r, err := New(Config{
		Models: []providers.ModelConfig{
			{Name: "fast", Kind: providers.KindOpenAIChat, Endpoint: fastSrv.URL, APIKey: "k"},
			{Name: "smart", Kind: providers.KindOpenAIChat, Endpoint: smartSrv.URL, APIKey: "k"},
		},
		DefaultModel: "fast",
	}, registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := r.Generate(context.Background(), GenerateRequest{Prompt: "q", ModelName: "fast"})
			if err != nil {
				errCh <- err
				return
			}
			if result.Text != "answer from fast" {
				errCh <- fmt.Errorf("fast model answered %q", result.Text)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := r.Generate(context.Background(), GenerateRequest{Prompt: "q", ModelName: "smart"})
			if err != nil {
				errCh <- err
				return
			}
			if result.Text != "answer from smart" {
				errCh <- fmt.Errorf("smart model answered %q", result.Text)
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

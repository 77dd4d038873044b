package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hermes/pkg/errors"
)

// testConfig builds a minimal model configuration pointing at a test server.
func testConfig(name string, kind ProviderKind, endpoint string) ModelConfig {
	return ModelConfig{
		Name:     name,
		Kind:     kind,
		Endpoint: endpoint,
		APIKey:   "test-key",
	}
}

// denyLimiter rejects every call. Used to exercise the rate limit error path.
type denyLimiter struct{}

func (denyLimiter) Wait(ctx context.Context) error {
	return errors.Wrap(errors.ErrRateLimitExceeded, "denied")
}
func (denyLimiter) Allow() bool    { return false }
func (denyLimiter) Limit() float64 { return 1 }

// jsonServer answers every request with the given status and body.
func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// capturingServer records the last request method, path, headers and decoded
// body before answering with the given response body.
type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]interface{}
}

func capturingServer(t *testing.T, responseBody string, captured *capturedRequest) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Header = r.Header.Clone()
		captured.Body = decodeJSONBody(t, r)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func decodeJSONBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	return body
}

// httptestSlowServer delays every response long enough to trip client
// timeouts, but aborts the delay at test end.
func httptestSlowServer(t *testing.T, delay time.Duration, body string) *httptest.Server {
	t.Helper()

	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-done:
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})
	return srv
}

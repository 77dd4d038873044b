package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"hermes/pkg/errors"
)

// maxBodyInError bounds provider bodies rendered into error strings. The
// full body stays available on the error value itself.
const maxBodyInError = 512

// TransportError indicates the provider could not be reached: connection
// refused, DNS failure, timeout. The underlying cause is preserved.
type TransportError struct {
	Kind ProviderKind
	Err  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the transport failure was a timeout or deadline
// expiry, as opposed to e.g. a refused connection.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// RemoteError indicates the provider answered with a non-success status.
// It carries the status code and the raw response body.
type RemoteError struct {
	Kind       ProviderKind
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s remote error (%d): %s", e.Kind, e.StatusCode, truncate(e.Body, maxBodyInError))
}

// Unwrap marks remote failures as external service errors.
func (e *RemoteError) Unwrap() error {
	return errors.ErrExternal
}

// ResponseShapeError indicates a success status whose body did not match
// the provider's published response shape.
type ResponseShapeError struct {
	Kind     ProviderKind
	Expected string
	Raw      json.RawMessage
}

// Error implements the error interface.
func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("%s response shape error: expected %s, got %s",
		e.Kind, e.Expected, truncate(string(e.Raw), maxBodyInError))
}

// Unwrap marks shape mismatches as external service errors.
func (e *ResponseShapeError) Unwrap() error {
	return errors.ErrExternal
}

// RateLimitError wraps rate limit related errors with model context.
type RateLimitError struct {
	Model string
	Limit float64
	Err   error
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for model %s (limit: %.0f req/min): %v", e.Model, e.Limit, e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

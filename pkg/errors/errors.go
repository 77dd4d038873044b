package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Callers match them with Is.

var (
	// ErrAlreadyExists indicates a duplicate registration or model name
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrExternal indicates an upstream provider failure
	ErrExternal = errors.New("external service error")
)

// Routing errors

var (
	// ErrUnknownModel indicates the requested model name is not configured
	ErrUnknownModel = errors.New("unknown model")

	// ErrNoDefaultModel indicates no model name was given and no default is configured
	ErrNoDefaultModel = errors.New("no default model configured")

	// ErrUnknownProviderKind indicates no adapter factory is registered for the kind
	ErrUnknownProviderKind = errors.New("unknown provider kind")

	// ErrUnsupportedCapability indicates the resolved adapter does not implement the operation
	ErrUnsupportedCapability = errors.New("unsupported capability")
)

// Throttling errors

var (
	// ErrRateLimitExceeded indicates a per-model rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

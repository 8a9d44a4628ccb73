package llm

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned when a configuration names a provider
// this package has no implementation for.
var ErrUnknownProvider = errors.New("unknown text generation provider")

// ErrMissingAPIKey is returned when a provider is constructed without
// credentials.
var ErrMissingAPIKey = errors.New("missing API key")

// ProviderError records a failed provider call with enough detail for the
// retry middleware to decide whether another attempt can succeed.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether a second attempt could plausibly succeed.
// Credential and request-shape failures are permanent; rate limits and
// server errors are not.
func (e *ProviderError) Retryable() bool {
	switch e.StatusCode {
	case 400, 401, 403, 404, 422:
		return false
	}
	return true
}

// isRetryable treats unclassified errors as retryable since transport
// failures arrive as plain errors.
func isRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable()
	}
	return true
}

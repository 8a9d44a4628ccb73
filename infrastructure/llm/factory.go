// Package llm builds chat-completion text generators for the supported
// providers and composes cross-cutting behavior around them with
// middleware.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/citescope/citescope/internal/ports"
)

// Config selects and parameterizes a text generation provider.
type Config struct {
	// Provider is one of "google", "openai", "anthropic".
	Provider string

	// Model is the provider-specific model name; empty selects the
	// provider default.
	Model string

	// APIKey authenticates against the provider.
	APIKey string

	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int

	// Timeout caps one generation call including retries' individual
	// attempts.
	Timeout time.Duration
}

const (
	defaultTimeout = 60 * time.Second
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
)

// NewGenerator creates the configured provider wrapped with timeout and
// retry middleware.
func NewGenerator(ctx context.Context, cfg Config) (ports.TextGenerator, error) {
	var (
		gen ports.TextGenerator
		err error
	)
	switch cfg.Provider {
	case "google":
		gen, err = newGoogleGenerator(ctx, cfg)
	case "openai":
		gen, err = newOpenAIGenerator(cfg)
	case "anthropic":
		gen, err = newAnthropicGenerator(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	middlewares := []Middleware{TracingMiddleware(), TimeoutMiddleware(timeout)}
	if cfg.MaxRetries > 0 {
		middlewares = append(middlewares, RetryMiddleware(cfg.MaxRetries, retryBaseDelay, retryMaxDelay))
	}
	return Chain(gen, middlewares...), nil
}

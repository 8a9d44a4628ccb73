package llm

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/citescope/citescope/internal/ports"
)

// Middleware wraps a TextGenerator with additional behavior.
type Middleware func(ports.TextGenerator) ports.TextGenerator

// Chain applies middlewares so the first listed is the outermost.
func Chain(gen ports.TextGenerator, middlewares ...Middleware) ports.TextGenerator {
	for i := len(middlewares) - 1; i >= 0; i-- {
		gen = middlewares[i](gen)
	}
	return gen
}

type timeoutGenerator struct {
	next    ports.TextGenerator
	timeout time.Duration
}

// TimeoutMiddleware bounds each generation call so a stalled provider
// cannot hang a batch.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.TextGenerator) ports.TextGenerator {
		return &timeoutGenerator{next: next, timeout: timeout}
	}
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, prompt, opts)
}

func (t *timeoutGenerator) Model() string { return t.next.Model() }

type retryGenerator struct {
	next       ports.TextGenerator
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries transient failures with exponential backoff and
// jitter. Permanent failures, like rejected credentials, stop immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next ports.TextGenerator) ports.TextGenerator {
		return &retryGenerator{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, err := r.next.Generate(ctx, prompt, opts)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *retryGenerator) delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := time.Duration(float64(r.baseDelay) * float64(uint(1)<<uint(attempt)))

	// ±25% jitter keeps synchronized retries from stampeding.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - (delay / 4)

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func (r *retryGenerator) Model() string { return r.next.Model() }

type rateLimitedGenerator struct {
	next    ports.TextGenerator
	limiter *rate.Limiter
}

// RateLimitMiddleware throttles generation calls to perSecond.
func RateLimitMiddleware(perSecond float64, burst int) Middleware {
	return func(next ports.TextGenerator) ports.TextGenerator {
		return &rateLimitedGenerator{
			next:    next,
			limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		}
	}
}

func (r *rateLimitedGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, prompt, opts)
}

func (r *rateLimitedGenerator) Model() string { return r.next.Model() }

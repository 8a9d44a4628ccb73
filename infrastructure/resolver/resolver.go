// Package resolver turns the AI service's redirect-wrapped citation URLs
// into final destination URLs over HTTP.
package resolver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/citescope/citescope/internal/ports"
)

// DefaultTimeout caps one resolution attempt, covering every hop of the
// redirect chain.
const DefaultTimeout = 8 * time.Second

type entry struct {
	finalURL string
	ok       bool
}

// HTTPResolver resolves redirect URLs by issuing a HEAD request and
// following the redirect chain to its end. Outcomes, including failures,
// are cached for the resolver's lifetime; construct one resolver per
// analysis batch so consecutive batches observe fresh redirect targets.
// Concurrent lookups of the same URL collapse into a single request.
type HTTPResolver struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	log     *zap.Logger
	metrics ports.MetricsCollector
	tracer  trace.Tracer

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]entry
}

// Option configures an HTTPResolver.
type Option func(*HTTPResolver)

// WithHTTPClient sets the HTTP client used for HEAD requests.
func WithHTTPClient(client *http.Client) Option {
	return func(r *HTTPResolver) { r.client = client }
}

// WithTimeout caps a single resolution attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(r *HTTPResolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithRateLimit throttles outbound requests to perSecond. Zero disables
// throttling.
func WithRateLimit(perSecond float64) Option {
	return func(r *HTTPResolver) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *HTTPResolver) { r.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(r *HTTPResolver) { r.metrics = m }
}

// New creates an HTTPResolver with an empty cache.
func New(opts ...Option) *HTTPResolver {
	r := &HTTPResolver{
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
		metrics: ports.NopMetrics(),
		tracer:  otel.Tracer("citescope/resolver"),
		cache:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the final URL behind rawURL. The second return is false
// when resolution failed; failures are cached so a dead URL costs one
// request per batch.
func (r *HTTPResolver) Resolve(ctx context.Context, rawURL string) (string, bool) {
	r.mu.RLock()
	cached, hit := r.cache[rawURL]
	r.mu.RUnlock()
	if hit {
		r.metrics.RecordResolution("cache_hit", 0)
		return cached.finalURL, cached.ok
	}

	res, err, _ := r.group.Do(rawURL, func() (any, error) {
		// A concurrent caller may have populated the cache while this
		// call waited on the singleflight lock.
		r.mu.RLock()
		cached, hit := r.cache[rawURL]
		r.mu.RUnlock()
		if hit {
			return cached, nil
		}

		e := r.resolve(ctx, rawURL)

		r.mu.Lock()
		r.cache[rawURL] = e
		r.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return "", false
	}

	e := res.(entry)
	return e.finalURL, e.ok
}

func (r *HTTPResolver) resolve(ctx context.Context, rawURL string) entry {
	ctx, span := r.tracer.Start(ctx, "resolver.resolve",
		trace.WithAttributes(attribute.String("resolver.url", rawURL)))
	defer span.End()

	start := time.Now()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			r.metrics.RecordResolution("canceled", time.Since(start))
			return entry{}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		r.log.Debug("unresolvable citation url", zap.String("url", rawURL), zap.Error(err))
		r.metrics.RecordResolution("invalid_url", time.Since(start))
		return entry{}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debug("citation resolution failed", zap.String("url", rawURL), zap.Error(err))
		r.metrics.RecordResolution("error", time.Since(start))
		return entry{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.log.Debug("citation resolution rejected",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode))
		r.metrics.RecordResolution("rejected", time.Since(start))
		return entry{}
	}

	final := resp.Request.URL.String()
	r.metrics.RecordResolution("resolved", time.Since(start))
	return entry{finalURL: final, ok: true}
}

// Size returns the number of cached outcomes, successes and failures both.
func (r *HTTPResolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Package ports defines the interfaces that connect the analysis core to
// its external collaborators: the grounded AI service, the URL resolver,
// the query generator, and the operational infrastructure. The interfaces
// enable dependency inversion and make the pipeline testable with mocks.
package ports

import (
	"context"
	"time"

	"github.com/citescope/citescope/internal/domain"
)

// GroundedClient is the AI-answer collaborator. Implementations call a
// generative model with web-search grounding enabled and map the provider's
// response into the typed RawGroundedAnswer schema.
type GroundedClient interface {
	// GenerateGrounded answers one query with grounding enabled.
	// A non-nil answer with no chunks or supports means the model answered
	// from prior knowledge; that is a valid outcome, not an error.
	// Errors wrapping ErrBatchFatal abort the whole batch; any other error
	// fails only the one query.
	GenerateGrounded(ctx context.Context, query string) (*domain.RawGroundedAnswer, error)
}

// URLResolver resolves a possibly-redirecting source URL to its final
// destination. Implementations cache per batch run and must be safe for
// concurrent use across query workers.
type URLResolver interface {
	// Resolve follows redirects to completion and returns the final URL.
	// It never returns an error: any failure (timeout, connection error,
	// non-2xx status) reports ok=false and the citation stays unresolved.
	Resolve(ctx context.Context, rawURL string) (finalURL string, ok bool)
}

// GenerateOptions carries the request parameters for plain text generation.
type GenerateOptions struct {
	// Temperature controls sampling randomness; nil uses the provider default.
	Temperature *float64
	// MaxTokens limits the response length; zero uses the provider default.
	MaxTokens int
	// System is an optional system prompt.
	System string
}

// TextGenerator is a plain, ungrounded text-generation client used by the
// query-generation collaborator. Unlike GroundedClient it carries no
// citation metadata, which lets any chat-completion provider serve it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Model returns the model identifier used for requests.
	Model() string
}

// QueryGenerator produces the classified query batch for a subject URL.
type QueryGenerator interface {
	GenerateQueries(ctx context.Context, url string, count int) ([]domain.Query, error)
}

// ContentFetcher retrieves the textual content of a web page for query
// generation. The full headless-browser crawler lives outside this system;
// this is its boundary.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ReportStore persists the full QueryResult list of the last completed
// batch as one JSON document. Consumers must tolerate additive fields.
type ReportStore interface {
	Save(ctx context.Context, results []domain.QueryResult) error
	Load(ctx context.Context) ([]domain.QueryResult, error)
}

// MetricsCollector records the operational metrics of an analysis run.
// A nil-safe no-op implementation is available via NopMetrics.
type MetricsCollector interface {
	// RecordResolution records one citation-resolution attempt with its
	// outcome ("hit", "miss", "failure") and duration.
	RecordResolution(outcome string, duration time.Duration)

	// RecordQuery records one processed query with its outcome
	// ("ok", "ungrounded", "failed") and duration.
	RecordQuery(outcome string, duration time.Duration)

	// RecordBatch records one finished batch run with its terminal status
	// and total duration.
	RecordBatch(status string, queries int, duration time.Duration)
}

// NopMetrics returns a MetricsCollector that discards everything.
func NopMetrics() MetricsCollector { return nopMetrics{} }

type nopMetrics struct{}

func (nopMetrics) RecordResolution(string, time.Duration) {}
func (nopMetrics) RecordQuery(string, time.Duration) {}
func (nopMetrics) RecordBatch(string, int, time.Duration) {}

package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

// Status is the lifecycle state of a batch run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Session defaults.
const (
	// DefaultMaxConcurrency bounds the query worker pool. Query processing
	// is network-latency-bound, so a small pool already saturates.
	DefaultMaxConcurrency = 4

	// DefaultQueryTimeout caps one AI call plus its citation resolutions.
	DefaultQueryTimeout = 90 * time.Second
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the structured logger.
func WithSessionLogger(log *zap.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithSessionMetrics sets the metrics collector.
func WithSessionMetrics(m ports.MetricsCollector) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithMaxConcurrency bounds the query worker pool.
func WithMaxConcurrency(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithQueryTimeout caps the processing time of a single query.
func WithQueryTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// Session processes one query batch end to end: grounded AI call, citation
// parsing and resolution, and per-query domain counting, followed by a
// single aggregation pass once every query has been attempted. Each Session
// is owned by its caller and holds no process-wide state, so independent
// batches can run side by side without cross-contamination. The resolver
// behind the parser carries the batch-scoped URL cache; it is the only
// shared mutable resource between query workers.
type Session struct {
	client  ports.GroundedClient
	parser  *GroundedResponseParser
	log     *zap.Logger
	metrics ports.MetricsCollector
	tracer  trace.Tracer

	maxConcurrency int
	queryTimeout   time.Duration

	mu      sync.Mutex
	status  Status
	results []domain.QueryResult
	report  *domain.Report
}

// NewSession creates an idle session for one batch run.
func NewSession(client ports.GroundedClient, parser *GroundedResponseParser, opts ...SessionOption) *Session {
	s := &Session{
		client:         client,
		parser:         parser,
		log:            zap.NewNop(),
		metrics:        ports.NopMetrics(),
		tracer:         otel.Tracer("analysis-session"),
		maxConcurrency: DefaultMaxConcurrency,
		queryTimeout:   DefaultQueryTimeout,
		status:         StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Results returns a copy of the QueryResults recorded so far. After a
// completed run this is the full batch; after a cancelled or failed run it
// holds whatever queries were attempted before the stop.
func (s *Session) Results() []domain.QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QueryResult, len(s.results))
	copy(out, s.results)
	return out
}

// Report returns the aggregate views of the completed batch. The second
// return value is false until the run has completed and aggregation ran.
func (s *Session) Report() (domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return domain.Report{}, false
	}
	return *s.report, true
}

// Run processes the whole batch and blocks until every query has been
// attempted or a batch-fatal condition stops the run. Per-query failures
// are recorded as empty QueryResults and do not stop the batch; an error
// wrapping ports.ErrBatchFatal or a context cancellation does, retaining
// the results completed so far. On success the session aggregates once and
// transitions to complete.
func (s *Session) Run(ctx context.Context, queries []domain.Query) ([]domain.QueryResult, error) {
	s.mu.Lock()
	if s.status == StatusAnalyzing {
		s.mu.Unlock()
		return nil, ports.ErrAlreadyAnalyzing
	}
	s.status = StatusAnalyzing
	s.results = nil
	s.report = nil
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "Session.Run",
		trace.WithAttributes(attribute.Int("batch.queries", len(queries))),
	)
	defer span.End()

	start := time.Now()

	results := make([]domain.QueryResult, len(queries))
	attempted := make([]bool, len(queries))
	var resMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i, q := range queries {
		g.Go(func() error {
			// A cancelled batch stops issuing work but keeps what finished.
			if gctx.Err() != nil {
				return gctx.Err()
			}

			res, err := s.processQuery(gctx, q)

			resMu.Lock()
			results[i] = res
			attempted[i] = true
			resMu.Unlock()

			if err != nil {
				return err
			}
			return nil
		})
	}

	runErr := g.Wait()

	completed := make([]domain.QueryResult, 0, len(queries))
	for i, ok := range attempted {
		if ok {
			completed = append(completed, results[i])
		}
	}

	s.mu.Lock()
	s.results = completed
	if runErr != nil {
		s.status = StatusError
		s.mu.Unlock()
		span.RecordError(runErr)
		s.metrics.RecordBatch(string(StatusError), len(completed), time.Since(start))
		s.log.Error("batch run failed",
			zap.Int("attempted", len(completed)),
			zap.Int("total", len(queries)),
			zap.Error(runErr),
		)
		return completed, runErr
	}

	report := domain.Aggregate(completed)
	s.report = &report
	s.status = StatusComplete
	s.mu.Unlock()

	s.metrics.RecordBatch(string(StatusComplete), len(completed), time.Since(start))
	s.log.Info("batch run complete",
		zap.Int("queries", len(completed)),
		zap.Int("domains", len(report.TotalMentions)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return completed, nil
}

// processQuery handles one query: AI call, parse, resolve, count. AI call
// failures that are not batch-fatal yield an empty QueryResult and a nil
// error so the batch continues.
func (s *Session) processQuery(ctx context.Context, q domain.Query) (domain.QueryResult, error) {
	ctx, span := s.tracer.Start(ctx, "Session.processQuery",
		trace.WithAttributes(attribute.String("query.classification", string(q.Classification))),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()

	answer, err := s.client.GenerateGrounded(ctx, q.Text)
	if err != nil {
		span.RecordError(err)
		if ports.IsBatchFatal(err) {
			return domain.QueryResult{Query: q}, fmt.Errorf("query %q: %w", q.Text, err)
		}
		s.metrics.RecordQuery("failed", time.Since(start))
		s.log.Warn("query failed, continuing batch",
			zap.String("query", q.Text),
			zap.Error(err),
		)
		return domain.QueryResult{Query: q}, nil
	}

	segments := s.parser.Parse(ctx, answer)
	counts := domain.CountDomains(segments)

	outcome := "ok"
	if !answer.HasGrounding() {
		outcome = "ungrounded"
	}
	s.metrics.RecordQuery(outcome, time.Since(start))

	return domain.QueryResult{
		Query:        q,
		DomainCounts: counts,
		RawAnswer:    answer,
		HadGrounding: answer.HasGrounding(),
		Segments:     segments,
	}, nil
}

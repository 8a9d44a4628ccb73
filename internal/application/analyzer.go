package application

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

// AnalyzerConfig tunes batch runs started through an Analyzer.
type AnalyzerConfig struct {
	// NumQueries is the default batch size when a start request does not
	// specify one.
	NumQueries int

	// MaxConcurrency bounds the per-batch query worker pool.
	MaxConcurrency int

	// QueryTimeout caps the processing time of one query.
	QueryTimeout time.Duration

	// AutoSave persists the QueryResult list after each completed batch.
	AutoSave bool
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithAnalyzerLogger sets the structured logger.
func WithAnalyzerLogger(log *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.log = log }
}

// WithAnalyzerMetrics sets the metrics collector.
func WithAnalyzerMetrics(m ports.MetricsCollector) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// WithReportStore sets the persistence backend for completed batches.
func WithReportStore(store ports.ReportStore) AnalyzerOption {
	return func(a *Analyzer) { a.store = store }
}

// Analyzer orchestrates full analysis runs: query generation, batch
// processing through a fresh per-batch Session, and access to the views of
// the last completed run. One Analyzer allows a single run in the
// analyzing state at a time; every run gets its own Session and its own
// resolver cache, so consecutive runs never share state.
type Analyzer struct {
	client      ports.GroundedClient
	queryGen    ports.QueryGenerator
	newResolver func() ports.URLResolver
	store       ports.ReportStore
	metrics     ports.MetricsCollector
	log         *zap.Logger
	cfg         AnalyzerConfig

	mu      sync.Mutex
	status  Status
	url     string
	queries []domain.Query
	session *Session
	runErr  error
}

// NewAnalyzer creates an idle analyzer. newResolver is called once per
// batch run to build that run's citation resolver, giving every batch an
// isolated URL cache.
func NewAnalyzer(
	client ports.GroundedClient,
	queryGen ports.QueryGenerator,
	newResolver func() ports.URLResolver,
	cfg AnalyzerConfig,
	opts ...AnalyzerOption,
) *Analyzer {
	a := &Analyzer{
		client:      client,
		queryGen:    queryGen,
		newResolver: newResolver,
		metrics:     ports.NopMetrics(),
		log:         zap.NewNop(),
		cfg:         cfg,
		status:      StatusIdle,
	}
	if a.cfg.NumQueries <= 0 {
		a.cfg.NumQueries = 8
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one full analysis synchronously: generate queries for the
// URL, process the batch, persist when configured. Query-generation
// failures and batch-fatal AI failures surface as errors and leave the
// analyzer in the error state; per-query failures do not.
func (a *Analyzer) Run(ctx context.Context, url string, numQueries int) ([]domain.QueryResult, error) {
	a.mu.Lock()
	if a.status == StatusAnalyzing {
		a.mu.Unlock()
		return nil, ports.ErrAlreadyAnalyzing
	}
	a.status = StatusAnalyzing
	a.url = url
	a.queries = nil
	a.session = nil
	a.runErr = nil
	a.mu.Unlock()

	if numQueries <= 0 {
		numQueries = a.cfg.NumQueries
	}

	queries, err := a.queryGen.GenerateQueries(ctx, url, numQueries)
	if err != nil {
		return nil, a.fail(fmt.Errorf("query generation: %w", err))
	}
	if len(queries) == 0 {
		return nil, a.fail(ports.ErrNoQueries)
	}

	session := NewSession(
		a.client,
		NewGroundedResponseParser(a.newResolver()),
		WithSessionLogger(a.log),
		WithSessionMetrics(a.metrics),
		WithMaxConcurrency(a.cfg.MaxConcurrency),
		WithQueryTimeout(a.cfg.QueryTimeout),
	)

	a.mu.Lock()
	a.queries = queries
	a.session = session
	a.mu.Unlock()

	results, err := session.Run(ctx, queries)
	if err != nil {
		a.mu.Lock()
		a.status = StatusError
		a.runErr = err
		a.mu.Unlock()
		return results, err
	}

	if a.cfg.AutoSave && a.store != nil {
		if saveErr := a.store.Save(ctx, results); saveErr != nil {
			// Persistence is best-effort; the in-memory results stand.
			a.log.Warn("failed to persist analysis report", zap.Error(saveErr))
		}
	}

	a.mu.Lock()
	a.status = StatusComplete
	a.mu.Unlock()
	return results, nil
}

// Start launches Run in the background and returns immediately, mirroring
// the API's fire-and-poll usage. It fails fast with ErrAlreadyAnalyzing
// when a run is in flight.
func (a *Analyzer) Start(ctx context.Context, url string, numQueries int) error {
	a.mu.Lock()
	if a.status == StatusAnalyzing {
		a.mu.Unlock()
		return ports.ErrAlreadyAnalyzing
	}
	a.mu.Unlock()

	// Detach from the request context: the run outlives the HTTP request
	// that started it, but honors server shutdown via the passed ctx tree.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := a.Run(runCtx, url, numQueries); err != nil {
			a.log.Error("background analysis failed", zap.String("url", url), zap.Error(err))
		}
	}()
	return nil
}

func (a *Analyzer) fail(err error) error {
	a.mu.Lock()
	a.status = StatusError
	a.runErr = err
	a.mu.Unlock()
	a.log.Error("analysis run failed", zap.Error(err))
	return err
}

// Status returns the analyzer's lifecycle state.
func (a *Analyzer) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// URL returns the subject URL of the current or last run.
func (a *Analyzer) URL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.url
}

// Err returns the terminal error of the last run, if any.
func (a *Analyzer) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runErr
}

// Queries returns the generated queries of the current or last run.
func (a *Analyzer) Queries() []domain.Query {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Query, len(a.queries))
	copy(out, a.queries)
	return out
}

// QueryTypeSummary reports the Direct/Generic split of the generated
// query batch.
func (a *Analyzer) QueryTypeSummary() QueryTypeSummary {
	queries := a.Queries()
	summary := QueryTypeSummary{Total: len(queries)}
	if summary.Total == 0 {
		return summary
	}
	for _, q := range queries {
		if q.Classification == domain.ClassificationDirect {
			summary.Direct++
		}
	}
	summary.Generic = summary.Total - summary.Direct
	summary.DirectPercentage = math.Round(float64(summary.Direct)/float64(summary.Total)*1000) / 10
	summary.GenericPercentage = math.Round(float64(summary.Generic)/float64(summary.Total)*1000) / 10
	return summary
}

// Results returns the QueryResults of the current or last run.
func (a *Analyzer) Results() []domain.QueryResult {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Results()
}

// QueryDetails returns the per-query view for the given query text.
func (a *Analyzer) QueryDetails(query string) (QueryDetail, bool) {
	for _, res := range a.Results() {
		if res.Query.Text != query {
			continue
		}
		detail := QueryDetail{
			Query:             res.Query.Text,
			QueryType:         string(res.Query.Classification),
			HadGrounding:      res.HadGrounding,
			Domains:           res.DomainCounts,
			GroundingSegments: res.Segments,
		}
		if res.RawAnswer != nil {
			detail.ResponseText = res.RawAnswer.ResponseText
		}
		return detail, true
	}
	return QueryDetail{}, false
}

// report returns the aggregate report of the last completed run.
func (a *Analyzer) report() (domain.Report, bool) {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session == nil {
		return domain.Report{}, false
	}
	return session.Report()
}

// PercentageAnalysis returns the prevalence view, or ok=false before the
// first completed run.
func (a *Analyzer) PercentageAnalysis() (PercentageAnalysis, bool) {
	report, ok := a.report()
	if !ok {
		return PercentageAnalysis{}, false
	}
	return percentageView(report), true
}

// RawTotals returns the total-mentions view, or ok=false before the first
// completed run.
func (a *Analyzer) RawTotals() (RawTotals, bool) {
	report, ok := a.report()
	if !ok {
		return RawTotals{}, false
	}
	return rawTotalsView(report), true
}

// DomainBreakdown returns the Direct/Generic breakdown view, or ok=false
// before the first completed run.
func (a *Analyzer) DomainBreakdown() (BreakdownView, bool) {
	report, ok := a.report()
	if !ok {
		return BreakdownView{}, false
	}
	return BreakdownView{DomainBreakdown: report.Breakdown}, true
}

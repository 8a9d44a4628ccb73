package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
	"github.com/citescope/citescope/internal/testutils"
)

// stubQueryGen returns a fixed query batch or a scripted error.
type stubQueryGen struct {
	queries []domain.Query
	err     error
}

func (s *stubQueryGen) GenerateQueries(ctx context.Context, url string, count int) ([]domain.Query, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.queries, nil
}

// memStore records the last saved result set in memory.
type memStore struct {
	mu      sync.Mutex
	saved   [][]domain.QueryResult
	saveErr error
}

func (m *memStore) Save(ctx context.Context, results []domain.QueryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, results)
	return nil
}

func (m *memStore) Load(ctx context.Context) ([]domain.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, ports.ErrNoResults
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func stubResolverFactory(stub *testutils.StubResolver) func() ports.URLResolver {
	return func() ports.URLResolver { return stub }
}

func TestAnalyzer_Run(t *testing.T) {
	client := testutils.NewMockGroundedClient()
	client.ScriptAnswer("what is acme", testutils.GroundedAnswer("a", "acme.com", "news.com"))
	client.ScriptAnswer("best widgets", testutils.GroundedAnswer("b", "news.com"))

	gen := &stubQueryGen{queries: []domain.Query{
		directQuery("what is acme"),
		genericQuery("best widgets"),
	}}

	analyzer := NewAnalyzer(
		client,
		gen,
		stubResolverFactory(testutils.NewStubResolver(nil)),
		AnalyzerConfig{NumQueries: 2},
	)

	results, err := analyzer.Run(context.Background(), "https://acme.com", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusComplete, analyzer.Status())
	assert.Equal(t, "https://acme.com", analyzer.URL())
	assert.NoError(t, analyzer.Err())
	assert.Len(t, analyzer.Queries(), 2)

	pct, ok := analyzer.PercentageAnalysis()
	require.True(t, ok)
	assert.Equal(t, 2, pct.NumOfQueries)
	require.NotEmpty(t, pct.DomainPercentages)
	assert.Equal(t, "news.com", pct.DomainPercentages[0].Domain)
	assert.Equal(t, 100.0, pct.DomainPercentages[0].Percentage)

	totals, ok := analyzer.RawTotals()
	require.True(t, ok)
	require.Len(t, totals.TotalLinkCounts, 2)
	total := 0
	for _, row := range totals.TotalLinkCounts {
		total += row.Count
	}
	assert.Equal(t, 3, total)

	breakdown, ok := analyzer.DomainBreakdown()
	require.True(t, ok)
	require.NotEmpty(t, breakdown.DomainBreakdown)
}

func TestAnalyzer_Run_QueryGenerationFailure(t *testing.T) {
	genErr := errors.New("provider unavailable")
	analyzer := NewAnalyzer(
		testutils.NewMockGroundedClient(),
		&stubQueryGen{err: genErr},
		stubResolverFactory(testutils.NewStubResolver(nil)),
		AnalyzerConfig{},
	)

	_, err := analyzer.Run(context.Background(), "https://acme.com", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, genErr)
	assert.Equal(t, StatusError, analyzer.Status())
	assert.ErrorIs(t, analyzer.Err(), genErr)

	_, ok := analyzer.PercentageAnalysis()
	assert.False(t, ok, "no views before the first completed run")
}

func TestAnalyzer_Run_EmptyQueryBatch(t *testing.T) {
	analyzer := NewAnalyzer(
		testutils.NewMockGroundedClient(),
		&stubQueryGen{},
		stubResolverFactory(testutils.NewStubResolver(nil)),
		AnalyzerConfig{},
	)

	_, err := analyzer.Run(context.Background(), "https://acme.com", 3)
	assert.ErrorIs(t, err, ports.ErrNoQueries)
	assert.Equal(t, StatusError, analyzer.Status())
}

func TestAnalyzer_Run_AutoSave(t *testing.T) {
	client := testutils.NewMockGroundedClient()
	client.ScriptAnswer("q", testutils.GroundedAnswer("a", "acme.com"))
	store := &memStore{}

	analyzer := NewAnalyzer(
		client,
		&stubQueryGen{queries: []domain.Query{directQuery("q")}},
		stubResolverFactory(testutils.NewStubResolver(nil)),
		AnalyzerConfig{AutoSave: true},
		WithReportStore(store),
	)

	_, err := analyzer.Run(context.Background(), "https://acme.com", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.saveCount())

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "q", loaded[0].Query.Text)
}

func TestAnalyzer_Run_SaveFailureIsBestEffort(t *testing.T) {
	client := testutils.NewMockGroundedClient()
	client.ScriptAnswer("q", testutils.GroundedAnswer("a", "acme.com"))
	store := &memStore{saveErr: errors.New("disk full")}

	analyzer := NewAnalyzer(
		client,
		&stubQueryGen{queries: []domain.Query{directQuery("q")}},
		stubResolverFactory(testutils.NewStubResolver(nil)),
		AnalyzerConfig{AutoSave: true},
		WithReportStore(store),
	)

	results, err := analyzer.Run(context.Background(), "https://acme.com", 1)
	require.NoError(t, err, "persistence failure must not fail the run")
	require.Len(t, results, 1)
	assert.Equal(t, StatusComplete, analyzer.Status())
}

func TestAnalyzer_QueryTypeSummary(t *testing.T) {
	client := testutils.NewMockGroundedClient()
	gen := &stubQueryGen{queries: []domain.Query{
		directQuery("d1"), directQuery("d2"), genericQuery("g1"),
	}}

	analyzer := NewAnalyzer(client, gen, stubResolverFactory(testutils.NewStubResolver(nil)), AnalyzerConfig{})

	assert.Equal(t, QueryTypeSummary{}, analyzer.QueryTypeSummary())

	_, err := analyzer.Run(context.Background(), "https://acme.com", 3)
	require.NoError(t, err)

	summary := analyzer.QueryTypeSummary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Direct)
	assert.Equal(t, 1, summary.Generic)
	assert.Equal(t, 66.7, summary.DirectPercentage)
	assert.Equal(t, 33.3, summary.GenericPercentage)
}

func TestAnalyzer_QueryDetails(t *testing.T) {
	client := testutils.NewMockGroundedClient()
	client.ScriptAnswer("known", testutils.GroundedAnswer("grounded answer", "acme.com"))

	analyzer := NewAnalyzer(
		client,
		&stubQueryGen{queries: []domain.Query{directQuery("known")}},
		stubResolverFactory(testutils.NewStubResolver(nil)),
		AnalyzerConfig{},
	)

	_, err := analyzer.Run(context.Background(), "https://acme.com", 1)
	require.NoError(t, err)

	detail, ok := analyzer.QueryDetails("known")
	require.True(t, ok)
	assert.Equal(t, "known", detail.Query)
	assert.Equal(t, string(domain.ClassificationDirect), detail.QueryType)
	assert.True(t, detail.HadGrounding)
	assert.Equal(t, "grounded answer", detail.ResponseText)
	require.Len(t, detail.Domains, 1)
	assert.Equal(t, "acme.com", detail.Domains[0].Domain)

	_, ok = analyzer.QueryDetails("unknown")
	assert.False(t, ok)
}

func TestAnalyzer_FreshResolverPerRun(t *testing.T) {
	client := testutils.NewMockGroundedClient()
	gen := &stubQueryGen{queries: []domain.Query{directQuery("q")}}

	var factoryCalls int
	analyzer := NewAnalyzer(
		client,
		gen,
		func() ports.URLResolver {
			factoryCalls++
			return testutils.NewStubResolver(nil)
		},
		AnalyzerConfig{},
	)

	_, err := analyzer.Run(context.Background(), "https://acme.com", 1)
	require.NoError(t, err)
	_, err = analyzer.Run(context.Background(), "https://acme.com", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, factoryCalls, "each run gets its own resolver cache")
}

func TestAnalyzer_Start(t *testing.T) {
	client := testutils.NewMockGroundedClient()
	client.ScriptAnswer("q", testutils.GroundedAnswer("a", "acme.com"))

	analyzer := NewAnalyzer(
		client,
		&stubQueryGen{queries: []domain.Query{directQuery("q")}},
		stubResolverFactory(testutils.NewStubResolver(nil)),
		AnalyzerConfig{},
	)

	require.NoError(t, analyzer.Start(context.Background(), "https://acme.com", 1))

	require.Eventually(t, func() bool {
		return analyzer.Status() == StatusComplete
	}, 5*time.Second, 10*time.Millisecond)

	assert.Len(t, analyzer.Results(), 1)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/application"
	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

// fakeService scripts every analyzer accessor the handlers read.
type fakeService struct {
	startErr error
	started  []string

	status  application.Status
	url     string
	err     error
	queries []domain.Query

	detail    application.QueryDetail
	hasDetail bool

	percentage application.PercentageAnalysis
	rawTotals  application.RawTotals
	breakdown  application.BreakdownView
	hasViews   bool
}

func (f *fakeService) Start(ctx context.Context, url string, numQueries int) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, url)
	return nil
}

func (f *fakeService) Status() application.Status { return f.status }
func (f *fakeService) URL() string                { return f.url }
func (f *fakeService) Err() error                 { return f.err }
func (f *fakeService) Queries() []domain.Query    { return f.queries }

func (f *fakeService) QueryTypeSummary() application.QueryTypeSummary {
	return application.QueryTypeSummary{Total: len(f.queries)}
}

func (f *fakeService) QueryDetails(string) (application.QueryDetail, bool) {
	return f.detail, f.hasDetail
}

func (f *fakeService) PercentageAnalysis() (application.PercentageAnalysis, bool) {
	return f.percentage, f.hasViews
}

func (f *fakeService) RawTotals() (application.RawTotals, bool) {
	return f.rawTotals, f.hasViews
}

func (f *fakeService) DomainBreakdown() (application.BreakdownView, bool) {
	return f.breakdown, f.hasViews
}

func completeService() *fakeService {
	return &fakeService{
		status: application.StatusComplete,
		url:    "https://acme.com",
		queries: []domain.Query{
			{Text: "what is acme", Classification: domain.ClassificationDirect},
			{Text: "best widgets", Classification: domain.ClassificationGeneric},
		},
		percentage: application.PercentageAnalysis{
			NumOfQueries: 2,
			DomainPercentages: []application.DomainPercentage{
				{Domain: "acme.com", Percentage: 100, QueryCount: 2},
			},
		},
		rawTotals: application.RawTotals{
			NumOfQueries:    2,
			TotalLinkCounts: []application.TotalLinkCount{{Domain: "acme.com", Count: 3}},
		},
		breakdown: application.BreakdownView{
			DomainBreakdown: []domain.DomainTypeBreakdown{{Domain: "acme.com", TotalAppearances: 2}},
		},
		hasViews: true,
	}
}

func doRequest(t *testing.T, svc analysisService, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	NewServer(svc).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_Health(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestServer_StartAnalysis(t *testing.T) {
	svc := &fakeService{status: application.StatusIdle}
	rec := doRequest(t, svc, http.MethodPost, "/api/start-analysis",
		`{"url": "https://acme.com", "numQueries": 5}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "started", body["status"])
	assert.Equal(t, "https://acme.com", body["url"])
	assert.Equal(t, []string{"https://acme.com"}, svc.started)
}

func TestServer_StartAnalysis_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing url", `{"numQueries": 5}`, http.StatusBadRequest},
		{"blank url", `{"url": "   "}`, http.StatusBadRequest},
		{"too many queries", `{"url": "https://a.com", "numQueries": 500}`, http.StatusBadRequest},
		{"malformed json", `{"url": `, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, &fakeService{}, http.MethodPost, "/api/start-analysis", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServer_StartAnalysis_Conflict(t *testing.T) {
	svc := &fakeService{startErr: ports.ErrAlreadyAnalyzing}
	rec := doRequest(t, svc, http.MethodPost, "/api/start-analysis", `{"url": "https://acme.com"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "already running")
}

func TestServer_Status(t *testing.T) {
	svc := completeService()
	rec := doRequest(t, svc, http.MethodGet, "/api/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "complete", body["status"])
	assert.Equal(t, "https://acme.com", body["url"])
	assert.Equal(t, float64(2), body["numQueries"])
	assert.NotContains(t, body, "error")
}

func TestServer_Status_Error(t *testing.T) {
	svc := &fakeService{status: application.StatusError, err: errors.New("no queries generated")}
	rec := doRequest(t, svc, http.MethodGet, "/api/status", "")

	body := decodeBody(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "no queries")
}

func TestServer_AggregateResults(t *testing.T) {
	rec := doRequest(t, completeService(), http.MethodGet, "/api/aggregate-results", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "complete", body["status"])
	assert.Equal(t, float64(2), body["numOfQueries"])

	percentages, ok := body["domainPercentages"].([]any)
	require.True(t, ok)
	require.Len(t, percentages, 1)
	row := percentages[0].(map[string]any)
	assert.Equal(t, "acme.com", row["domain"])
	assert.Equal(t, float64(100), row["percentage"])
}

func TestServer_AggregateResults_NotComplete(t *testing.T) {
	svc := &fakeService{status: application.StatusAnalyzing}
	rec := doRequest(t, svc, http.MethodGet, "/api/aggregate-results", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "not complete")
}

func TestServer_RawTotals(t *testing.T) {
	rec := doRequest(t, completeService(), http.MethodGet, "/api/raw-totals", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	counts, ok := body["totalLinkCounts"].([]any)
	require.True(t, ok)
	require.Len(t, counts, 1)
	assert.Equal(t, float64(3), counts[0].(map[string]any)["count"])
}

func TestServer_DomainBreakdown(t *testing.T) {
	rec := doRequest(t, completeService(), http.MethodGet, "/api/domain-breakdown", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	rows, ok := body["domainBreakdown"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "acme.com", rows[0].(map[string]any)["domain"])
}

func TestServer_QueryDetails(t *testing.T) {
	svc := completeService()
	svc.detail = application.QueryDetail{
		Query:        "what is acme",
		QueryType:    "Direct",
		ResponseText: "Acme makes widgets.",
		HadGrounding: true,
	}
	svc.hasDetail = true

	rec := doRequest(t, svc, http.MethodPost, "/api/query-details", `{"query": "what is acme"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "what is acme", body["query"])
	assert.Equal(t, true, body["hadGrounding"])
}

func TestServer_QueryDetails_NotFound(t *testing.T) {
	svc := completeService()
	rec := doRequest(t, svc, http.MethodPost, "/api/query-details", `{"query": "unknown"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_QueryDetails_NotComplete(t *testing.T) {
	svc := &fakeService{status: application.StatusAnalyzing}
	rec := doRequest(t, svc, http.MethodPost, "/api/query-details", `{"query": "q"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Queries(t *testing.T) {
	rec := doRequest(t, completeService(), http.MethodGet, "/api/queries", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	queries, ok := body["queries"].([]any)
	require.True(t, ok)
	require.Len(t, queries, 2)
	first := queries[0].(map[string]any)
	assert.Equal(t, "what is acme", first["query"])
	assert.Equal(t, "Direct", first["type"])
}

func TestServer_UnknownEndpoint(t *testing.T) {
	rec := doRequest(t, &fakeService{}, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "not found")
}

func TestServer_MetricsMount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("metrics ok"))
	})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	NewServer(&fakeService{}, WithMetricsHandler(handler)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "metrics ok"))
}

package querygen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/testutils"
)

type stubFetcher struct {
	content string
	err     error
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}

func TestGenerator_GenerateQueries(t *testing.T) {
	response := `Here are your queries:
[{"query": "acme widget pricing", "type": "Direct"}, {"query": "best widget brands", "type": "Generic"}]`

	gen := New(testutils.NewMockTextGenerator(response), &stubFetcher{content: "Acme makes widgets."})

	queries, err := gen.GenerateQueries(context.Background(), "https://acme.com", 2)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, "acme widget pricing", queries[0].Text)
	assert.Equal(t, domain.ClassificationDirect, queries[0].Classification)
	assert.Equal(t, "best widget brands", queries[1].Text)
	assert.Equal(t, domain.ClassificationGeneric, queries[1].Classification)
}

func TestGenerator_GenerateQueries_FetchFailure(t *testing.T) {
	gen := New(testutils.NewMockTextGenerator("[]"), &stubFetcher{err: errors.New("connection refused")})

	_, err := gen.GenerateQueries(context.Background(), "https://down.example", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch content")
}

func TestGenerator_GenerateQueries_ModelFailure(t *testing.T) {
	mock := testutils.NewMockTextGenerator("")
	mock.FailWith(errors.New("overloaded"))
	gen := New(mock, &stubFetcher{content: "content"})

	_, err := gen.GenerateQueries(context.Background(), "https://acme.com", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query generation request failed")
}

func TestGenerator_PromptCarriesContentAndCount(t *testing.T) {
	mock := testutils.NewMockTextGenerator(`[{"query": "acme widget pricing", "type": "Direct"}]`)
	gen := New(mock, &stubFetcher{content: "Acme unique marker text."})

	_, err := gen.GenerateQueries(context.Background(), "https://acme.com", 5)
	require.NoError(t, err)

	prompts := mock.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Acme unique marker text.")
	assert.Contains(t, prompts[0], "Generate 5 diverse queries")
}

func TestExtractQueries(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []domain.Query
	}{
		{
			name:     "classified objects",
			response: `[{"query": "acme pricing", "type": "Direct"}, {"query": "widget reviews", "type": "Generic"}]`,
			want: []domain.Query{
				{Text: "acme pricing", Classification: domain.ClassificationDirect},
				{Text: "widget reviews", Classification: domain.ClassificationGeneric},
			},
		},
		{
			name:     "case insensitive classification",
			response: `[{"query": "acme pricing", "type": "direct"}]`,
			want: []domain.Query{
				{Text: "acme pricing", Classification: domain.ClassificationDirect},
			},
		},
		{
			name:     "unknown classification defaults to generic",
			response: `[{"query": "acme pricing", "type": "branded"}]`,
			want: []domain.Query{
				{Text: "acme pricing", Classification: domain.ClassificationGeneric},
			},
		},
		{
			name:     "bare string array",
			response: `["widget pricing", "widget reviews"]`,
			want: []domain.Query{
				{Text: "widget pricing", Classification: domain.ClassificationGeneric},
				{Text: "widget reviews", Classification: domain.ClassificationGeneric},
			},
		},
		{
			name:     "surrounding prose",
			response: "Sure! Here is the list:\n[\"widget pricing\"]\nHope this helps.",
			want: []domain.Query{
				{Text: "widget pricing", Classification: domain.ClassificationGeneric},
			},
		},
		{
			name:     "quoted string fallback",
			response: `The queries are "widget pricing" and "widget reviews", enjoy.`,
			want: []domain.Query{
				{Text: "widget pricing", Classification: domain.ClassificationGeneric},
				{Text: "widget reviews", Classification: domain.ClassificationGeneric},
			},
		},
		{
			name:     "short fragments filtered",
			response: `["ok", "widget pricing"]`,
			want: []domain.Query{
				{Text: "widget pricing", Classification: domain.ClassificationGeneric},
			},
		},
		{
			name:     "nothing extractable",
			response: "I cannot help with that.",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractQueries(tt.response))
		})
	}
}

func TestGenerator_DedupeNearDuplicates(t *testing.T) {
	items := make([]string, 0, 3)
	items = append(items,
		`{"query": "best widget brands", "type": "Generic"}`,
		`{"query": "Best Widget Brands", "type": "Generic"}`, // case duplicate
		`{"query": "best widget brandz", "type": "Generic"}`, // near duplicate
	)
	response := "[" + strings.Join(items, ",") + "]"

	gen := New(testutils.NewMockTextGenerator(response), &stubFetcher{content: "content"})
	queries, err := gen.GenerateQueries(context.Background(), "https://acme.com", 3)
	require.NoError(t, err)

	require.Len(t, queries, 1)
	assert.Equal(t, "best widget brands", queries[0].Text)
}

func TestGenerator_CapsBatchSize(t *testing.T) {
	var items []string
	for i := 0; i < 26; i++ {
		// Distinct enough that near-duplicate filtering keeps them all.
		word := strings.Repeat(string(rune('a'+i)), 6)
		items = append(items, fmt.Sprintf(`{"query": "how does %s compare with competitors", "type": "Generic"}`, word))
	}
	response := "[" + strings.Join(items, ",") + "]"

	gen := New(testutils.NewMockTextGenerator(response), &stubFetcher{content: "content"})
	queries, err := gen.GenerateQueries(context.Background(), "https://acme.com", 26)
	require.NoError(t, err)

	assert.Len(t, queries, maxQueries)
}

// Package testutils provides deterministic collaborator doubles for
// testing the analysis pipeline without network access.
package testutils

import (
	"context"
	"sync"

	"github.com/citescope/citescope/internal/domain"
)

// MockGroundedClient implements ports.GroundedClient with scripted answers
// keyed by query text. It is safe for concurrent use and counts calls so
// tests can assert on request volume.
type MockGroundedClient struct {
	mu      sync.Mutex
	answers map[string]*domain.RawGroundedAnswer
	errors  map[string]error
	calls   map[string]int
}

// NewMockGroundedClient creates an empty scripted client.
func NewMockGroundedClient() *MockGroundedClient {
	return &MockGroundedClient{
		answers: make(map[string]*domain.RawGroundedAnswer),
		errors:  make(map[string]error),
		calls:   make(map[string]int),
	}
}

// ScriptAnswer registers the answer returned for a query.
func (m *MockGroundedClient) ScriptAnswer(query string, answer *domain.RawGroundedAnswer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[query] = answer
}

// ScriptError registers the error returned for a query.
func (m *MockGroundedClient) ScriptError(query string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[query] = err
}

// GenerateGrounded returns the scripted answer or error for the query.
// Unscripted queries get an ungrounded answer so batches never block.
func (m *MockGroundedClient) GenerateGrounded(ctx context.Context, query string) (*domain.RawGroundedAnswer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[query]++

	if err, ok := m.errors[query]; ok {
		return nil, err
	}
	if answer, ok := m.answers[query]; ok {
		return answer, nil
	}
	return &domain.RawGroundedAnswer{ResponseText: "answered from prior knowledge"}, nil
}

// Calls returns how many times the query was requested.
func (m *MockGroundedClient) Calls(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[query]
}

// TotalCalls returns the number of requests across all queries.
func (m *MockGroundedClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// GroundedAnswer builds a single-segment answer citing the given sources,
// a convenience for tests that only care about domain extraction. Each
// source becomes one chunk, and the one support references every chunk in
// order.
func GroundedAnswer(text string, titles ...string) *domain.RawGroundedAnswer {
	answer := &domain.RawGroundedAnswer{ResponseText: text}
	indices := make([]int, 0, len(titles))
	for i, title := range titles {
		answer.Chunks = append(answer.Chunks, domain.SourceChunk{
			Title:       title,
			RedirectURL: "https://redirect.example/" + title,
		})
		indices = append(indices, i)
	}
	answer.Supports = append(answer.Supports, domain.SupportSpan{
		StartIndex:   0,
		EndIndex:     len(text),
		Text:         text,
		ChunkIndices: indices,
	})
	return answer
}

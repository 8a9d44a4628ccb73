package testutils

import (
	"context"
	"sync"
)

// StubResolver implements ports.URLResolver over a fixed redirect table
// and counts resolution attempts per URL, letting tests assert that
// caching and memoization keep network-equivalent work to a minimum.
type StubResolver struct {
	mu       sync.Mutex
	mappings map[string]string
	calls    map[string]int
}

// NewStubResolver creates a resolver with the given redirect->final table.
// URLs absent from the table fail to resolve.
func NewStubResolver(mappings map[string]string) *StubResolver {
	if mappings == nil {
		mappings = make(map[string]string)
	}
	return &StubResolver{
		mappings: mappings,
		calls:    make(map[string]int),
	}
}

// Resolve looks up the redirect table and records the attempt.
func (s *StubResolver) Resolve(ctx context.Context, rawURL string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[rawURL]++
	final, ok := s.mappings[rawURL]
	return final, ok
}

// Calls returns how many times the URL was resolved.
func (s *StubResolver) Calls(rawURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[rawURL]
}

// TotalCalls returns resolution attempts across all URLs.
func (s *StubResolver) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

package testutils

import (
	"context"
	"sync"

	"github.com/citescope/citescope/internal/ports"
)

// MockTextGenerator implements ports.TextGenerator with a fixed response
// or a scripted error, recording every prompt it receives.
type MockTextGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

// NewMockTextGenerator creates a generator that always returns response.
func NewMockTextGenerator(response string) *MockTextGenerator {
	return &MockTextGenerator{response: response}
}

// FailWith makes every Generate call return err.
func (m *MockTextGenerator) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Generate records the prompt and returns the scripted response or error.
func (m *MockTextGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// Model returns a fixed mock identifier.
func (m *MockTextGenerator) Model() string { return "mock-text-model" }

// Prompts returns every prompt received, in call order.
func (m *MockTextGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

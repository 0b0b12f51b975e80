package providers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockProvider is a Provider for testing with scripted behavior.
type MockProvider struct {
	// Latency is simulated per call (respects context cancellation).
	Latency time.Duration

	// Responses are returned in call order; the last one repeats.
	Responses []string

	// Errs are scripted per call: a non-nil entry fails that call.
	// Calls past the end of the slice succeed.
	Errs []error

	mu           sync.Mutex
	prompts      []string
	requestCount atomic.Int64
}

// NewMockProvider creates a mock that always returns response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Responses: []string{response}}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return MockName }

// Complete returns the next scripted response or error.
func (m *MockProvider) Complete(ctx context.Context, prompt string) (string, error) {
	count := int(m.requestCount.Add(1))

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	if idx := count - 1; idx < len(m.Errs) && m.Errs[idx] != nil {
		return "", m.Errs[idx]
	}

	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := count - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	return int(m.requestCount.Load())
}

// Prompts returns a copy of all prompts received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Verify interface
var _ Provider = (*MockProvider)(nil)

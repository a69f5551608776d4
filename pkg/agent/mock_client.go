package agent

import (
	"context"
	"sync"
)

// MockLLMClient provides a scripted LLMClient for testing.
type MockLLMClient struct {
	mu        sync.Mutex
	responses []CompletionResponse
	errors    []error
	calls     []CompletionRequest
	index     int
}

// NewMockLLMClient creates a mock client that replays the given responses
// and errors in order. When the script runs out the last entry repeats.
func NewMockLLMClient(responses []CompletionResponse, errors []error) *MockLLMClient {
	return &MockLLMClient{
		responses: responses,
		errors:    errors,
	}
}

// NewMockLLMClientWithContent creates a mock client that replays the given
// content strings as successful completions.
func NewMockLLMClientWithContent(contents ...string) *MockLLMClient {
	responses := make([]CompletionResponse, len(contents))
	for i, c := range contents {
		responses[i] = CompletionResponse{Content: c}
	}
	return NewMockLLMClient(responses, nil)
}

// Complete implements LLMClient.
func (m *MockLLMClient) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	i := m.index
	m.index++

	if len(m.errors) > 0 {
		ei := i
		if ei >= len(m.errors) {
			ei = len(m.errors) - 1
		}
		if err := m.errors[ei]; err != nil {
			return CompletionResponse{}, err
		}
	}

	if len(m.responses) == 0 {
		return CompletionResponse{Content: "mock response"}, nil
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

// Calls returns a copy of the requests seen so far.
func (m *MockLLMClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete invocations.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

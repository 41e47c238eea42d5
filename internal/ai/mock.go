package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers. Responses are chosen by
// request intent, falling back to Response.
type MockProvider struct {
	Response  string
	Responses map[Intent]string
	Audio     *Attachment
	Err       error
	// Hook, when set, runs before a response is produced and may block or fail.
	Hook func(ctx context.Context, req CompletionRequest) error

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Hook != nil {
		if err := m.Hook(ctx, req); err != nil {
			return CompletionResponse{}, err
		}
	}
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}

	content := m.Response
	if r, ok := m.Responses[req.Intent]; ok {
		content = r
	}
	resp := CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}
	if req.Speech != nil {
		resp.Audio = m.Audio
	}
	return resp, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockProvider) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest{}, m.requests...)
}

// LastRequest returns the most recent request, if any.
func (m *MockProvider) LastRequest() (CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return CompletionRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

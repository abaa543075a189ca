package llm

import "context"

// MockProvider is a test double for the Provider interface.
//
// Responses are served in order; when exhausted, the last response repeats.
// It records every prompt sent, which lets tests assert on call structure
// without depending on a live model.
type MockProvider struct {
	// Responses are returned in order for successive calls.
	Responses []string

	// Err, when set, is returned by every call instead of a response.
	Err error

	// Calls records the user-visible prompt of each call.
	Calls []string

	next int
}

// Generate records the call and returns the next canned response.
func (m *MockProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return m.respond(prompt)
}

// GenerateWithMessages records the last user message and returns the next canned response.
func (m *MockProvider) GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error) {
	prompt := ""
	for _, msg := range messages {
		if msg.Role == "user" {
			prompt = msg.Content
		}
	}
	return m.respond(prompt)
}

// Close is a no-op.
func (m *MockProvider) Close() error {
	return nil
}

func (m *MockProvider) respond(prompt string) (string, error) {
	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	resp := m.Responses[m.next]
	if m.next < len(m.Responses)-1 {
		m.next++
	}
	return resp, nil
}

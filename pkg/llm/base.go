// Package llm defines the language model client used for the engine's
// structured calls: fact decomposition, category assignment, and query
// intent classification. Every call sends a prompt and expects a JSON
// response, so the defaults favor determinism over creativity.
package llm

import "context"

// Provider is a language model client. Implementations cover OpenAI and
// any OpenAI-compatible endpoint; MockProvider serves tests.
type Provider interface {
	// Generate completes a single prompt and returns the response text.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages completes a conversation, typically a system
	// prompt paired with the user input.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Close releases provider resources.
	Close() error
}

// Message is one turn of a conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// GenerateOptions holds the sampling parameters of one generation call.
type GenerateOptions struct {
	// Temperature controls randomness, 0.0-2.0.
	Temperature float64

	// MaxTokens caps the response length.
	MaxTokens int

	// TopP is the nucleus sampling cutoff, 0.0-1.0.
	TopP float64

	// Stop lists sequences that end generation early.
	Stop []string
}

// GenerateOption overrides one sampling parameter.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature. Extraction calls keep it
// low so repeated runs over the same input stay semantically stable.
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the nucleus sampling cutoff.
func WithTopP(topP float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.TopP = topP
	}
}

// ApplyGenerateOptions resolves a call's options against the engine
// defaults: Temperature 0.2, MaxTokens 1000, TopP 1.0.
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.2,
		MaxTokens:   1000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

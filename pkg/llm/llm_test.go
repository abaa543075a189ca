package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripCodeFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripCodeFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripCodeFences(`{"a": 1}`))
	assert.Equal(t, "", StripCodeFences("```json\n```"))
}

func TestMockProviderServesResponsesInOrder(t *testing.T) {
	mock := &MockProvider{Responses: []string{"one", "two"}}
	ctx := context.Background()

	r, err := mock.Generate(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "one", r)

	r, err = mock.Generate(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "two", r)

	// The last response repeats once exhausted.
	r, err = mock.Generate(ctx, "third")
	require.NoError(t, err)
	assert.Equal(t, "two", r)

	assert.Equal(t, []string{"first", "second", "third"}, mock.Calls)
}

func TestMockProviderRecordsUserMessage(t *testing.T) {
	mock := &MockProvider{Responses: []string{"ok"}}

	_, err := mock.GenerateWithMessages(context.Background(), []Message{
		{Role: "system", Content: "instructions"},
		{Role: "user", Content: "the question"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"the question"}, mock.Calls)
}

func TestMockProviderError(t *testing.T) {
	mock := &MockProvider{Err: errors.New("down")}
	_, err := mock.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestApplyGenerateOptions(t *testing.T) {
	defaults := ApplyGenerateOptions(nil)
	assert.InDelta(t, 0.2, defaults.Temperature, 1e-9)
	assert.Equal(t, 1000, defaults.MaxTokens)
	assert.InDelta(t, 1.0, defaults.TopP, 1e-9)

	custom := ApplyGenerateOptions([]GenerateOption{
		WithTemperature(0.7),
		WithMaxTokens(50),
		WithTopP(0.9),
	})
	assert.InDelta(t, 0.7, custom.Temperature, 1e-9)
	assert.Equal(t, 50, custom.MaxTokens)
	assert.InDelta(t, 0.9, custom.TopP, 1e-9)
}

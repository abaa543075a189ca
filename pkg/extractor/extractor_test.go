package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgrid/memgrid-go/pkg/llm"
)

const aliceResponse = `{"facts": [
	{"content": "Name is Alice", "fact_type": "identity", "confidence": 0.95},
	{"content": "Alice works as a nurse", "fact_type": "profession", "confidence": 0.95},
	{"content": "Alice lives in Boston", "fact_type": "location", "confidence": 0.9},
	{"content": "Alice loves hiking", "fact_type": "preference", "confidence": 0.9}
]}`

func TestExtract(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{aliceResponse}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "I'm Alice, a nurse in Boston who loves hiking.", Options{})
	require.Len(t, facts, 4)
	assert.Equal(t, FactIdentity, facts[0].Type)
	assert.Equal(t, FactProfession, facts[1].Type)
	assert.Equal(t, FactLocation, facts[2].Type)
	assert.Equal(t, FactPreference, facts[3].Type)
	for _, f := range facts {
		assert.NotEmpty(t, f.Content)
		assert.GreaterOrEqual(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
	}
}

func TestExtractStripsCodeFences(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{"```json\n" + aliceResponse + "\n```"}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "some text", Options{})
	assert.Len(t, facts, 4)
}

func TestExtractDegradesOnProviderError(t *testing.T) {
	mock := &llm.MockProvider{Err: errors.New("model down")}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "I love hiking", Options{})
	require.Len(t, facts, 1)
	assert.Equal(t, "I love hiking", facts[0].Content)
	assert.Equal(t, FactOther, facts[0].Type)
	assert.InDelta(t, 0.5, facts[0].Confidence, 1e-9)
}

func TestExtractDegradesOnBadJSON(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{"not json at all"}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "raw input", Options{})
	require.Len(t, facts, 1)
	assert.Equal(t, "raw input", facts[0].Content)
	assert.Equal(t, FactOther, facts[0].Type)
}

func TestExtractDegradesOnEmptyFacts(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{`{"facts": []}`}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "Hi.", Options{})
	require.Len(t, facts, 1)
	assert.Equal(t, "Hi.", facts[0].Content)
}

func TestExtractCoercesUnknownType(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{
		`{"facts": [{"content": "something", "fact_type": "made_up_type", "confidence": 0.8}]}`,
	}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "text", Options{})
	require.Len(t, facts, 1)
	assert.Equal(t, FactOther, facts[0].Type)
}

func TestExtractClampsConfidence(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{
		`{"facts": [
			{"content": "overconfident", "fact_type": "other", "confidence": 3.5},
			{"content": "negative", "fact_type": "other", "confidence": -1.0}
		]}`,
	}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "text", Options{})
	require.Len(t, facts, 2)
	assert.Equal(t, 1.0, facts[0].Confidence)
	assert.Equal(t, 0.0, facts[1].Confidence)
}

func TestExtractDropsBelowMinConfidence(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{
		`{"facts": [
			{"content": "strong", "fact_type": "other", "confidence": 0.9},
			{"content": "weak", "fact_type": "other", "confidence": 0.1}
		]}`,
	}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "text", Options{MinConfidence: 0.3})
	require.Len(t, facts, 1)
	assert.Equal(t, "strong", facts[0].Content)
}

func TestExtractCapsAtMaxFacts(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{aliceResponse}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "text", Options{MaxFacts: 2})
	assert.Len(t, facts, 2)
}

func TestExtractTruncatesLongFacts(t *testing.T) {
	long := strings.Repeat("x", 600)
	mock := &llm.MockProvider{Responses: []string{
		`{"facts": [{"content": "` + long + `", "fact_type": "other", "confidence": 0.9}]}`,
	}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "text", Options{})
	require.Len(t, facts, 1)
	assert.Len(t, []rune(facts[0].Content), 500)
}

func TestExtractSkipsEmptyContent(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{
		`{"facts": [
			{"content": "  ", "fact_type": "other", "confidence": 0.9},
			{"content": "real fact", "fact_type": "other", "confidence": 0.9}
		]}`,
	}}
	e := New(mock, nil)

	facts := e.Extract(context.Background(), "text", Options{})
	require.Len(t, facts, 1)
	assert.Equal(t, "real fact", facts[0].Content)
}

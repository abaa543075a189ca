// Package extractor decomposes raw text into atomic, typed,
// confidence-scored facts using a language model.
//
// Each extracted fact is self-contained: pronouns resolved, no dependency on
// sentence order. Extraction never fails an ingestion: when the model call
// fails or returns garbage, the extractor falls back to a single degraded
// fact carrying the full input text.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memgrid/memgrid-go/pkg/llm"
)

// Fact is an atomic statement extracted from raw text.
type Fact struct {
	// Content is the self-contained fact text.
	Content string `json:"content"`

	// Type classifies the fact into the closed FactType set.
	Type FactType `json:"fact_type"`

	// Confidence is the extraction confidence in [0,1].
	Confidence float64 `json:"confidence"`
}

// Options controls a single extraction call.
type Options struct {
	// MaxFacts caps the number of returned facts. Zero means 10.
	MaxFacts int

	// MinConfidence drops facts below this confidence before return.
	MinConfidence float64
}

// Extractor extracts typed facts from text using an LLM.
type Extractor struct {
	llm           llm.Provider
	logger        *zap.Logger
	maxFactLength int
	timeout       time.Duration
}

// Config contains extractor configuration.
type Config struct {
	// MaxFactLength truncates fact content beyond this many runes.
	// Zero means 500.
	MaxFactLength int

	// Timeout bounds the model call. Zero means 30s.
	Timeout time.Duration

	// Logger receives degraded-operation warnings. Nil means no logging.
	Logger *zap.Logger
}

// New creates a new fact extractor.
func New(provider llm.Provider, cfg *Config) *Extractor {
	if cfg == nil {
		cfg = &Config{}
	}
	maxLen := cfg.MaxFactLength
	if maxLen <= 0 {
		maxLen = 500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		llm:           provider,
		logger:        logger,
		maxFactLength: maxLen,
		timeout:       timeout,
	}
}

// factsResponse is the JSON shape the model is asked to produce.
type factsResponse struct {
	Facts []struct {
		Content    string  `json:"content"`
		FactType   string  `json:"fact_type"`
		Confidence float64 `json:"confidence"`
	} `json:"facts"`
}

// Extract decomposes text into typed facts.
//
// The call never returns an error for model failures: on failure or timeout
// it returns the degraded single fact {Content: text, Type: other,
// Confidence: 0.5} so that ingestion always succeeds. Facts below
// opts.MinConfidence are dropped; content is truncated to the configured
// max length; unknown fact types are coerced to "other".
func (e *Extractor) Extract(ctx context.Context, text string, opts Options) []Fact {
	maxFacts := opts.MaxFacts
	if maxFacts <= 0 {
		maxFacts = 10
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: e.systemPrompt(maxFacts)},
		{Role: "user", Content: fmt.Sprintf("Input:\n%s", text)},
	}

	response, err := e.llm.GenerateWithMessages(callCtx, messages, llm.WithTemperature(0.1))
	if err != nil {
		e.logger.Warn("fact extraction degraded to single fact",
			zap.Error(err))
		return e.degraded(text)
	}

	facts, err := e.parseResponse(response)
	if err != nil {
		e.logger.Warn("fact extraction response unparseable, degraded to single fact",
			zap.Error(err))
		return e.degraded(text)
	}

	out := make([]Fact, 0, len(facts))
	for _, f := range facts {
		if f.Confidence < opts.MinConfidence {
			continue
		}
		out = append(out, f)
		if len(out) == maxFacts {
			break
		}
	}

	if len(out) == 0 {
		// A model that found nothing usable still must not sink the input.
		return e.degraded(text)
	}

	return out
}

// degraded is the always-succeeding fallback: one untyped fact holding the
// full input.
func (e *Extractor) degraded(text string) []Fact {
	return []Fact{{
		Content:    e.truncate(text),
		Type:       FactOther,
		Confidence: 0.5,
	}}
}

// systemPrompt builds the extraction prompt constrained to the closed
// fact-type enum.
func (e *Extractor) systemPrompt(maxFacts int) string {
	return fmt.Sprintf(`You are a fact extraction engine. Decompose the input into at most %d distinct, self-contained facts.

Rules:
1. SELF-CONTAINED: Resolve all pronouns. Each fact must make sense on its own, in any order.
2. ATOMIC: One statement per fact. Split compound sentences.
3. TYPED: Assign each fact exactly one fact_type from this list:
   identity, location, profession, preference, project, technical, timeline, relationship, skill, goal, emotion, experience, other
4. SCORED: Assign a confidence between 0.0 and 1.0 reflecting how clearly the input states the fact.
5. Keep each fact under %d characters.

Return JSON only: {"facts": [{"content": "...", "fact_type": "...", "confidence": 0.9}]}

Examples:
Input: I'm Alice, a nurse in Boston who loves hiking.
Output: {"facts": [
  {"content": "Name is Alice", "fact_type": "identity", "confidence": 0.95},
  {"content": "Alice works as a nurse", "fact_type": "profession", "confidence": 0.95},
  {"content": "Alice lives in Boston", "fact_type": "location", "confidence": 0.9},
  {"content": "Alice loves hiking", "fact_type": "preference", "confidence": 0.9}
]}

Input: Hi.
Output: {"facts": []}

Extract facts from the input below:`, maxFacts, e.maxFactLength)
}

// parseResponse parses the model response into typed facts.
func (e *Extractor) parseResponse(response string) ([]Fact, error) {
	response = llm.StripCodeFences(response)

	var parsed factsResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	facts := make([]Fact, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		content := strings.TrimSpace(f.Content)
		if content == "" {
			continue
		}

		factType := FactType(strings.ToLower(strings.TrimSpace(f.FactType)))
		if !factType.Valid() {
			factType = FactOther
		}

		confidence := f.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		facts = append(facts, Fact{
			Content:    e.truncate(content),
			Type:       factType,
			Confidence: confidence,
		})
	}

	return facts, nil
}

// truncate caps fact content at the configured max rune length.
func (e *Extractor) truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= e.maxFactLength {
		return s
	}
	return string(runes[:e.maxFactLength])
}

// Package categorizer assigns hierarchical category paths to facts.
//
// A category path is an ordered list of 1-4 levels, broad to narrow
// (e.g. ["professional", "healthcare", "nursing"]). Assignment is driven by
// a language model; failures fall back to ["uncategorized"] and never block
// ingestion.
package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memgrid/memgrid-go/pkg/llm"
)

// MaxLevels is the maximum number of levels in a category path. Assignment
// clamps deeper paths; the orchestrator rejects them.
const MaxLevels = 4

// CategoryPath is a hierarchical category assignment.
type CategoryPath struct {
	// Levels is the ordered 1-4 level path, broad to narrow.
	Levels []string `json:"levels"`

	// Confidence is the assignment confidence in [0,1].
	Confidence float64 `json:"confidence"`
}

// Categorizer assigns category paths using an LLM.
type Categorizer struct {
	llm     llm.Provider
	logger  *zap.Logger
	timeout time.Duration
}

// Config contains categorizer configuration.
type Config struct {
	// Timeout bounds each model call. Zero means 30s.
	Timeout time.Duration

	// Logger receives degraded-operation warnings. Nil means no logging.
	Logger *zap.Logger
}

// New creates a new categorizer.
func New(provider llm.Provider, cfg *Config) *Categorizer {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Categorizer{
		llm:     provider,
		logger:  logger,
		timeout: timeout,
	}
}

// Fallback is the category path used when assignment fails.
func Fallback() CategoryPath {
	return CategoryPath{Levels: []string{"uncategorized"}, Confidence: 0}
}

// Categorize assigns a category path to a single fact.
//
// Never returns an error for model failures: the fallback path
// ["uncategorized"] with confidence 0 is returned instead, and the failure
// is logged as a degraded operation.
func (c *Categorizer) Categorize(ctx context.Context, factText string) CategoryPath {
	paths := c.CategorizeBatch(ctx, []string{factText})
	return paths[0]
}

// batchResponse is the JSON shape the model is asked to produce.
type batchResponse struct {
	Categories []struct {
		Levels     []string `json:"levels"`
		Confidence float64  `json:"confidence"`
	} `json:"categories"`
}

// CategorizeBatch assigns category paths to many facts in one model call.
//
// The returned slice always has one entry per input, in input order; any
// item the model failed to categorize carries the fallback path.
func (c *Categorizer) CategorizeBatch(ctx context.Context, factTexts []string) []CategoryPath {
	out := make([]CategoryPath, len(factTexts))
	for i := range out {
		out[i] = Fallback()
	}
	if len(factTexts) == 0 {
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var input strings.Builder
	for i, t := range factTexts {
		fmt.Fprintf(&input, "%d. %s\n", i+1, t)
	}

	messages := []llm.Message{
		{Role: "system", Content: batchPrompt(len(factTexts))},
		{Role: "user", Content: input.String()},
	}

	response, err := c.llm.GenerateWithMessages(callCtx, messages, llm.WithTemperature(0.1))
	if err != nil {
		c.logger.Warn("categorization degraded to fallback",
			zap.Int("facts", len(factTexts)),
			zap.Error(err))
		return out
	}

	var parsed batchResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFences(response)), &parsed); err != nil {
		c.logger.Warn("categorization response unparseable, using fallback",
			zap.Error(err))
		return out
	}

	for i, cat := range parsed.Categories {
		if i >= len(out) {
			break
		}
		levels := normalizeLevels(cat.Levels)
		if len(levels) == 0 {
			continue
		}
		confidence := cat.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		out[i] = CategoryPath{Levels: levels, Confidence: confidence}
	}

	return out
}

// batchPrompt builds the categorization prompt.
func batchPrompt(n int) string {
	return fmt.Sprintf(`You are a fact categorizer. Assign each of the %d numbered facts a hierarchical category path.

Rules:
1. Level 1 is a broad domain: personal, professional, technical, social, health, finance, education, or another single broad word.
2. Levels 2-4 narrow the specificity. Use between 1 and 4 levels total.
3. Every level is a single lowercase word or short hyphenated phrase. No empty levels.
4. Assign a confidence between 0.0 and 1.0 per fact.

Return JSON only, one entry per fact in input order:
{"categories": [{"levels": ["professional", "healthcare"], "confidence": 0.9}]}

Categorize the numbered facts below:`, n)
}

// normalizeLevels trims, lowercases, drops empties, and clamps depth.
func normalizeLevels(levels []string) []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		out = append(out, l)
		if len(out) == MaxLevels {
			break
		}
	}
	return out
}

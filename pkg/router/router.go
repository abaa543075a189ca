// Package router classifies query intent with an LLM and dispatches the
// query to the matching retrieval strategy.
//
// Classification is best effort: low confidence, malformed model output,
// or a model failure all fall back to a semantic-weighted hybrid search,
// so routing never fails a query the underlying strategies could serve.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memgrid/memgrid-go/pkg/llm"
	"github.com/memgrid/memgrid-go/pkg/search"
)

// DefaultMinIntentConfidence is the classification confidence below which
// the router uses the fallback hybrid blend.
const DefaultMinIntentConfidence = 0.5

// Intent is the classified retrieval intent of a query.
type Intent struct {
	// Strategy is the selected retrieval strategy.
	Strategy search.StrategyName `json:"strategy"`

	// Weights carries constituent weights when Strategy is hybrid.
	Weights map[search.StrategyName]float64 `json:"weights,omitempty"`

	// Confidence is the classification confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Reasoning is the model's short justification. Informational only.
	Reasoning string `json:"reasoning,omitempty"`

	// Keywords are extracted lexical terms for keyword search.
	Keywords []string `json:"keywords,omitempty"`

	// CategoryTerms are extracted category levels for categorical search.
	CategoryTerms []string `json:"category_terms,omitempty"`

	// Window is the resolved time window for temporal search.
	Window *search.TimeWindow `json:"-"`
}

// Router analyzes queries and runs them through the right strategy.
type Router struct {
	llm           llm.Provider
	strategies    map[search.StrategyName]search.Strategy
	logger        *zap.Logger
	minConfidence float64
	now           func() time.Time
}

// Config contains router configuration.
type Config struct {
	// MinIntentConfidence is the classification confidence floor. Zero
	// means the default.
	MinIntentConfidence float64

	// Logger receives routing-fallback warnings. Nil means no logging.
	Logger *zap.Logger
}

// New creates a router over the given strategies.
func New(provider llm.Provider, strategies []search.Strategy, cfg *Config) *Router {
	if cfg == nil {
		cfg = &Config{}
	}
	minConfidence := cfg.MinIntentConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinIntentConfidence
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[search.StrategyName]search.Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &Router{
		llm:           provider,
		strategies:    byName,
		logger:        logger,
		minConfidence: minConfidence,
		now:           time.Now,
	}
}

// intentResponse is the JSON shape the model is asked to produce. The time
// expression stays symbolic; resolution to a concrete window happens here,
// not in the model.
type intentResponse struct {
	Strategy      string             `json:"strategy"`
	Weights       map[string]float64 `json:"weights"`
	Confidence    float64            `json:"confidence"`
	Reasoning     string             `json:"reasoning"`
	Keywords      []string           `json:"keywords"`
	CategoryTerms []string           `json:"category_terms"`
	TimeExpr      string             `json:"time_expression"`
}

const intentPrompt = `You are a query intent classifier for a memory retrieval system. Classify the retrieval intent of the user's query.

Strategies:
- semantic: conceptual or meaning-based questions ("what do I think about X")
- keyword: queries naming specific terms, names, or identifiers
- categorical: queries about a topic area ("my health info", "work stuff")
- temporal: queries about a time period ("yesterday", "last week", "recent")
- graph: queries about connections ("related to", "connected with")
- hybrid: mixed intent; provide constituent weights summing to 1.0

Return JSON only:
{"strategy": "semantic", "weights": {}, "confidence": 0.9, "reasoning": "...", "keywords": ["..."], "category_terms": ["..."], "time_expression": "last week"}

Leave weights empty unless strategy is hybrid. Leave time_expression empty unless the query names a time period. Use these exact time expressions when they apply: "today", "yesterday", "last week", "last month", "last year", "recent".`

// Analyze classifies the query's retrieval intent.
func (r *Router) Analyze(ctx context.Context, query string) (*Intent, error) {
	messages := []llm.Message{
		{Role: "system", Content: intentPrompt},
		{Role: "user", Content: query},
	}
	response, err := r.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0.1))
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}

	var parsed intentResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFences(response)), &parsed); err != nil {
		return nil, fmt.Errorf("parse intent response: %w", err)
	}

	strategy := search.StrategyName(strings.ToLower(strings.TrimSpace(parsed.Strategy)))
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown strategy %q", parsed.Strategy)
	}

	intent := &Intent{
		Strategy:      strategy,
		Confidence:    parsed.Confidence,
		Reasoning:     parsed.Reasoning,
		Keywords:      parsed.Keywords,
		CategoryTerms: parsed.CategoryTerms,
	}
	if len(parsed.Weights) > 0 {
		intent.Weights = make(map[search.StrategyName]float64, len(parsed.Weights))
		for name, w := range parsed.Weights {
			intent.Weights[search.StrategyName(name)] = w
		}
	}
	if parsed.TimeExpr != "" {
		intent.Window = resolveTimeWindow(parsed.TimeExpr, r.now())
	}
	return intent, nil
}

// Search classifies the query and runs the selected strategy for one
// owner, optionally restricted to the given tiers. A non-empty override
// skips classification. Low confidence, classification failure, or an
// unavailable strategy all route to the fallback hybrid blend.
func (r *Router) Search(ctx context.Context, ownerID, query string, topK int, tiers []string, override search.StrategyName) ([]search.Result, error) {
	params := search.Params{Query: query, TopK: topK, Tiers: tiers}

	var strategy search.StrategyName
	if override != "" {
		strategy = override
	} else {
		intent, err := r.Analyze(ctx, query)
		switch {
		case err != nil:
			r.logger.Warn("intent classification failed, using hybrid fallback",
				zap.Error(err))
			strategy = search.StrategyHybrid
			params.Weights = search.DefaultHybridWeights()
		case intent.Confidence < r.minConfidence:
			r.logger.Warn("intent confidence below threshold, using hybrid fallback",
				zap.String("strategy", string(intent.Strategy)),
				zap.Float64("confidence", intent.Confidence))
			strategy = search.StrategyHybrid
			params.Weights = search.DefaultHybridWeights()
		default:
			strategy = intent.Strategy
			params.Weights = intent.Weights
			params.Keywords = intent.Keywords
			params.CategoryTerms = intent.CategoryTerms
			params.Window = intent.Window
		}
	}

	impl, ok := r.strategies[strategy]
	if !ok {
		r.logger.Warn("strategy unavailable, using hybrid fallback",
			zap.String("strategy", string(strategy)))
		impl, ok = r.strategies[search.StrategyHybrid]
		if !ok {
			return nil, fmt.Errorf("no strategy available for %q", strategy)
		}
		params.Weights = search.DefaultHybridWeights()
	}

	results, err := impl.Search(ctx, params, ownerID)
	if err != nil {
		return nil, err
	}
	return dedupeResults(results, topK), nil
}

// dedupeResults keeps the best-scoring entry per memory id and truncates
// to topK. Input order is score-descending per strategy contract.
func dedupeResults(results []search.Result, topK int) []search.Result {
	seen := make(map[int64]bool, len(results))
	out := make([]search.Result, 0, len(results))
	for _, r := range results {
		if seen[r.Memory.ID] {
			continue
		}
		seen[r.Memory.ID] = true
		out = append(out, r)
		if topK > 0 && len(out) == topK {
			break
		}
	}
	return out
}

// resolveTimeWindow turns a symbolic time expression into a concrete
// window against now. Unknown expressions resolve to the recent window.
func resolveTimeWindow(expr string, now time.Time) *search.TimeWindow {
	day := 24 * time.Hour
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch strings.ToLower(strings.TrimSpace(expr)) {
	case "today":
		return &search.TimeWindow{From: startOfDay, To: now}
	case "yesterday":
		return &search.TimeWindow{From: startOfDay.Add(-day), To: startOfDay}
	case "last week":
		return &search.TimeWindow{From: now.Add(-7 * day), To: now}
	case "last month":
		return &search.TimeWindow{From: now.AddDate(0, -1, 0), To: now}
	case "last year":
		return &search.TimeWindow{From: now.AddDate(-1, 0, 0), To: now}
	default:
		// "recent" and anything unrecognized.
		return &search.TimeWindow{From: now.Add(-3 * day), To: now}
	}
}

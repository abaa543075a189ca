// Package search implements the retrieval strategies over a memory store.
//
// Six strategies share one interface: semantic (vector similarity), keyword
// (lexical rank), categorical (category containment), temporal (time-range),
// graph (related-id traversal), and hybrid (weighted fusion of the others).
// Each strategy scores its results in [0,1] by its own notion of relevance.
package search

import (
	"context"
	"time"

	"github.com/memgrid/memgrid-go/pkg/storage"
)

// StrategyName identifies a retrieval strategy.
type StrategyName string

const (
	StrategySemantic    StrategyName = "semantic"
	StrategyKeyword     StrategyName = "keyword"
	StrategyCategorical StrategyName = "categorical"
	StrategyTemporal    StrategyName = "temporal"
	StrategyGraph       StrategyName = "graph"
	StrategyHybrid      StrategyName = "hybrid"
)

// Valid reports whether the strategy name is one of the known strategies.
func (s StrategyName) Valid() bool {
	switch s {
	case StrategySemantic, StrategyKeyword, StrategyCategorical,
		StrategyTemporal, StrategyGraph, StrategyHybrid:
		return true
	}
	return false
}

// Result is a single retrieved memory with its relevance score and the
// strategies that surfaced it.
type Result struct {
	// Memory is the retrieved memory.
	Memory *storage.Memory

	// Score is the strategy-specific relevance in [0,1]. For hybrid it is
	// the weighted combination of normalized constituent scores.
	Score float64

	// Strategies lists every strategy that returned this memory.
	Strategies []StrategyName
}

// Params carries the query inputs a strategy may consume. Each strategy
// reads only the fields it needs and applies its documented default for
// absent ones.
type Params struct {
	// Query is the raw search query text.
	Query string

	// Embedding is the query embedding. Semantic search embeds Query
	// itself when nil.
	Embedding []float64

	// Keywords are the lexical terms. Keyword search tokenizes Query when
	// empty.
	Keywords []string

	// CategoryTerms are the category levels to match.
	CategoryTerms []string

	// MatchAll requires every category term to match instead of any.
	MatchAll bool

	// Window bounds temporal search. Nil means the default window.
	Window *TimeWindow

	// SeedIDs are the graph traversal starting points. Graph search seeds
	// itself from a lexical probe when empty.
	SeedIDs []int64

	// Depth is the maximum graph traversal depth. Zero means the default.
	Depth int

	// Threshold is the minimum semantic similarity. Zero means the default.
	Threshold float64

	// TopK caps the number of results. Zero means the default.
	TopK int

	// Tiers restricts results to the given tiers. Empty means all.
	Tiers []string

	// Weights assigns constituent weights for hybrid fusion.
	Weights map[StrategyName]float64
}

// TimeWindow is a closed creation-time interval. A zero From means
// unbounded past.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Strategy is a single retrieval strategy over the store.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() StrategyName

	// Search runs the strategy for one owner and returns scored results,
	// best first.
	Search(ctx context.Context, params Params, ownerID string) ([]Result, error)
}

const (
	// DefaultTopK caps results when Params.TopK is zero.
	DefaultTopK = 10

	// DefaultSemanticThreshold is the minimum cosine similarity for
	// semantic results.
	DefaultSemanticThreshold = 0.7

	// DefaultGraphDepth bounds graph traversal when Params.Depth is zero.
	DefaultGraphDepth = 3
)

func (p Params) topK() int {
	if p.TopK > 0 {
		return p.TopK
	}
	return DefaultTopK
}

// toResults wraps store memories as results under one strategy, keeping
// the store-assigned scores.
func toResults(memories []*storage.Memory, name StrategyName) []Result {
	results := make([]Result, 0, len(memories))
	for _, m := range memories {
		results = append(results, Result{
			Memory:     m,
			Score:      m.Score,
			Strategies: []StrategyName{name},
		})
	}
	return results
}

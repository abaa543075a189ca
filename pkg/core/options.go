package core

import "github.com/memgrid/memgrid-go/pkg/search"

// IngestOption is a function type for configuring Ingest operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type IngestOption func(*IngestOptions)

// IngestOptions contains configuration options for Ingest operations.
type IngestOptions struct {
	// ExtractFacts runs LLM fact extraction on the input text. When false
	// the raw text is stored as a single memory.
	ExtractFacts bool

	// AutoCategorize assigns a hierarchical category path to each fact.
	AutoCategorize bool

	// GenerateEmbeddings generates a vector embedding for each fact.
	GenerateEmbeddings bool

	// LinkFacts records symmetric related-id links among the facts of
	// this batch.
	LinkFacts bool

	// MaxFacts caps how many facts one ingest extracts.
	MaxFacts int

	// MinConfidence drops extracted facts below this confidence.
	MinConfidence float64
}

// DefaultIngestOptions returns the defaults: the full pipeline enabled,
// at most 10 facts, minimum confidence 0.3.
func DefaultIngestOptions() *IngestOptions {
	return &IngestOptions{
		ExtractFacts:       true,
		AutoCategorize:     true,
		GenerateEmbeddings: true,
		LinkFacts:          true,
		MaxFacts:           10,
		MinConfidence:      0.3,
	}
}

// WithoutExtraction stores the raw text as one memory, skipping fact
// extraction.
func WithoutExtraction() IngestOption {
	return func(opts *IngestOptions) {
		opts.ExtractFacts = false
	}
}

// WithoutCategorization skips category assignment.
func WithoutCategorization() IngestOption {
	return func(opts *IngestOptions) {
		opts.AutoCategorize = false
	}
}

// WithoutEmbeddings skips embedding generation. Stored memories carry no
// vector until backfilled.
func WithoutEmbeddings() IngestOption {
	return func(opts *IngestOptions) {
		opts.GenerateEmbeddings = false
	}
}

// WithoutLinking skips batch fact linking.
func WithoutLinking() IngestOption {
	return func(opts *IngestOptions) {
		opts.LinkFacts = false
	}
}

// WithMaxFacts caps the number of facts extracted per ingest.
func WithMaxFacts(n int) IngestOption {
	return func(opts *IngestOptions) {
		opts.MaxFacts = n
	}
}

// WithMinConfidence drops extracted facts below the given confidence.
func WithMinConfidence(c float64) IngestOption {
	return func(opts *IngestOptions) {
		opts.MinConfidence = c
	}
}

// SearchOption is a function type for configuring Search operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for Search operations.
type SearchOptions struct {
	// TopK caps the number of results.
	TopK int

	// TierFilter restricts results to the given tiers. Empty means all.
	TierFilter []Tier

	// StrategyOverride skips intent classification and forces the given
	// strategy. Empty means route by intent.
	StrategyOverride search.StrategyName
}

// DefaultSearchOptions returns the defaults: top 10, all tiers, routed
// by intent.
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{TopK: 10}
}

// WithTopK caps the number of search results.
func WithTopK(k int) SearchOption {
	return func(opts *SearchOptions) {
		opts.TopK = k
	}
}

// WithTiers restricts search results to the given tiers.
func WithTiers(tiers ...Tier) SearchOption {
	return func(opts *SearchOptions) {
		opts.TierFilter = tiers
	}
}

// WithStrategy forces a specific retrieval strategy, skipping intent
// classification.
func WithStrategy(name search.StrategyName) SearchOption {
	return func(opts *SearchOptions) {
		opts.StrategyOverride = name
	}
}

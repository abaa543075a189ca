// Package storage provides interfaces and types for tiered memory stores.
//
// It defines the Store interface that all storage implementations must
// satisfy: four owner-scoped read primitives (vector nearest-neighbor,
// lexical rank, category containment, time-range) plus the write operations
// the orchestrator needs, including the tier+age bounded retention delete.
package storage

import (
	"context"
	"time"
)

// Memory represents a memory row in the store.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. It mirrors the core.Memory structure with tier and
// fact type as plain strings.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64

	// OwnerID is the opaque owner reference all queries are scoped by.
	OwnerID string

	// Tier is the retention class: "personal", "project", or "task".
	Tier string

	// Content is the fact text.
	Content string

	// Embedding is the vector embedding. Nil when generation failed.
	Embedding []float64

	// CategoryPath is the ordered hierarchical category (1-4 levels).
	CategoryPath []string

	// FactType is the closed-set fact classification.
	FactType string

	// Confidence is the extraction confidence in [0,1].
	Confidence float64

	// RelatedIDs are weak references to other memories of the same owner.
	RelatedIDs []int64

	// CreatedAt is when the memory was created.
	CreatedAt time.Time

	// AccessedAt is when the memory was last returned by a search.
	AccessedAt time.Time

	// AccessCount is how many times the memory was returned by a search.
	AccessCount int64

	// Score is the relevance score attached by search primitives. Transient.
	Score float64
}

// Store defines the interface for memory storage backends.
//
// All storage implementations (SQLite, PostgreSQL, MySQL) must implement
// this interface. Implementations must support concurrent readers and
// writers; Touch must apply an atomic in-database increment.
type Store interface {
	// Insert inserts a memory into the store. A non-nil embedding whose
	// length differs from the store's configured dimension is rejected
	// with ErrDimensionMismatch.
	Insert(ctx context.Context, memory *Memory) error

	// Get retrieves a memory by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id int64) (*Memory, error)

	// SearchVector returns memories ranked by cosine similarity to the
	// query embedding, descending, filtered to similarity >= MinScore.
	SearchVector(ctx context.Context, embedding []float64, opts *VectorOptions) ([]*Memory, error)

	// SearchLexical returns memories ranked by BM25 relevance to the query
	// terms, descending. Memories matching no term are excluded.
	SearchLexical(ctx context.Context, terms []string, opts *LexicalOptions) ([]*Memory, error)

	// SearchCategory returns memories whose category path contains the
	// given terms: any term (matchAll false) or every term (matchAll true).
	// Score carries the proportion of matched terms.
	SearchCategory(ctx context.Context, terms []string, matchAll bool, opts *CategoryOptions) ([]*Memory, error)

	// SearchTimeRange returns memories with CreatedAt in [from, to],
	// ordered by recency (newest first). A zero from means unbounded.
	SearchTimeRange(ctx context.Context, from, to time.Time, opts *RangeOptions) ([]*Memory, error)

	// UpdateEmbedding replaces a memory's embedding. Used by backfill for
	// memories persisted without a vector. Returns ErrNotFound when absent
	// and ErrDimensionMismatch on a wrong-length vector.
	UpdateEmbedding(ctx context.Context, id int64, embedding []float64) error

	// Touch records retrieval of the given memories: accessed_at is set to
	// now and access_count incremented, in a single atomic statement.
	Touch(ctx context.Context, ids []int64) error

	// AppendRelated appends ids to a memory's related set, skipping
	// duplicates and the memory's own id.
	AppendRelated(ctx context.Context, id int64, related []int64) error

	// Delete deletes a memory by ID. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id int64) error

	// DeleteExpired deletes memories of the given tier created strictly
	// before the cutoff, returning the number of rows removed. Running it
	// twice with no newly-expired rows in between is a no-op the second time.
	DeleteExpired(ctx context.Context, tier string, before time.Time) (int64, error)

	// Stats aggregates counts by tier and top-level category plus embedding
	// coverage. An empty ownerID aggregates across all owners.
	Stats(ctx context.Context, ownerID string) (*Stats, error)

	// Close closes the store and releases resources.
	Close() error
}

// VectorOptions contains options for vector similarity search.
type VectorOptions struct {
	// OwnerID scopes results to one owner. Required.
	OwnerID string

	// Limit caps the number of results. Zero means no cap.
	Limit int

	// MinScore excludes results below this cosine similarity.
	MinScore float64

	// Tiers restricts results to the given tiers. Empty means all.
	Tiers []string
}

// LexicalOptions contains options for lexical rank search.
type LexicalOptions struct {
	// OwnerID scopes results to one owner. Required.
	OwnerID string

	// Limit caps the number of results. Zero means no cap.
	Limit int

	// Tiers restricts results to the given tiers. Empty means all.
	Tiers []string
}

// CategoryOptions contains options for category containment search.
type CategoryOptions struct {
	// OwnerID scopes results to one owner. Required.
	OwnerID string

	// Limit caps the number of results. Zero means no cap.
	Limit int

	// Tiers restricts results to the given tiers. Empty means all.
	Tiers []string
}

// RangeOptions contains options for time-range search.
type RangeOptions struct {
	// OwnerID scopes results to one owner. Required.
	OwnerID string

	// Limit caps the number of results. Zero means no cap.
	Limit int

	// Tiers restricts results to the given tiers. Empty means all.
	Tiers []string
}

// Stats aggregates store-level counts for an owner.
type Stats struct {
	// Total is the number of stored memories.
	Total int64

	// ByTier counts memories per tier.
	ByTier map[string]int64

	// ByCategory counts memories per top-level category.
	ByCategory map[string]int64

	// WithEmbedding counts memories that carry a vector.
	WithEmbedding int64
}

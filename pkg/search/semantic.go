package search

import (
	"context"
	"fmt"

	"github.com/memgrid/memgrid-go/pkg/embedder"
	"github.com/memgrid/memgrid-go/pkg/storage"
)

// SemanticStrategy retrieves memories by vector similarity to the query.
type SemanticStrategy struct {
	store     storage.Store
	embedder  embedder.Provider
	threshold float64
}

// NewSemanticStrategy creates a semantic strategy. A non-positive threshold
// selects the default minimum similarity.
func NewSemanticStrategy(store storage.Store, provider embedder.Provider, threshold float64) *SemanticStrategy {
	if threshold <= 0 {
		threshold = DefaultSemanticThreshold
	}
	return &SemanticStrategy{
		store:     store,
		embedder:  provider,
		threshold: threshold,
	}
}

func (s *SemanticStrategy) Name() StrategyName {
	return StrategySemantic
}

// Search embeds the query (unless a precomputed embedding is supplied) and
// returns memories above the similarity threshold, most similar first.
func (s *SemanticStrategy) Search(ctx context.Context, params Params, ownerID string) ([]Result, error) {
	embedding := params.Embedding
	if embedding == nil {
		var err error
		embedding, err = s.embedder.Embed(ctx, params.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	threshold := params.Threshold
	if threshold <= 0 {
		threshold = s.threshold
	}

	memories, err := s.store.SearchVector(ctx, embedding, &storage.VectorOptions{
		OwnerID:  ownerID,
		Limit:    params.topK(),
		MinScore: threshold,
		Tiers:    params.Tiers,
	})
	if err != nil {
		return nil, err
	}
	return toResults(memories, StrategySemantic), nil
}

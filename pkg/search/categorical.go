package search

import (
	"context"

	"github.com/memgrid/memgrid-go/pkg/storage"
)

// CategoricalStrategy retrieves memories whose category path contains the
// query's category terms.
type CategoricalStrategy struct {
	store storage.Store
}

// NewCategoricalStrategy creates a categorical strategy.
func NewCategoricalStrategy(store storage.Store) *CategoricalStrategy {
	return &CategoricalStrategy{store: store}
}

func (s *CategoricalStrategy) Name() StrategyName {
	return StrategyCategorical
}

// Search matches category terms against stored paths. In match-any mode
// every hit scores 1.0; in match-all mode the store reports the matched
// proportion, which for a hit is also 1.0. Terms default to the tokenized
// query when none are supplied.
func (s *CategoricalStrategy) Search(ctx context.Context, params Params, ownerID string) ([]Result, error) {
	terms := params.CategoryTerms
	if len(terms) == 0 {
		terms = storage.Tokenize(params.Query)
	}
	if len(terms) == 0 {
		return nil, nil
	}

	memories, err := s.store.SearchCategory(ctx, terms, params.MatchAll, &storage.CategoryOptions{
		OwnerID: ownerID,
		Limit:   params.topK(),
		Tiers:   params.Tiers,
	})
	if err != nil {
		return nil, err
	}
	return toResults(memories, StrategyCategorical), nil
}

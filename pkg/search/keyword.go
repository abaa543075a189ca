package search

import (
	"context"

	"github.com/memgrid/memgrid-go/pkg/storage"
)

// KeywordStrategy retrieves memories by lexical relevance to query terms.
type KeywordStrategy struct {
	store storage.Store
}

// NewKeywordStrategy creates a keyword strategy.
func NewKeywordStrategy(store storage.Store) *KeywordStrategy {
	return &KeywordStrategy{store: store}
}

func (s *KeywordStrategy) Name() StrategyName {
	return StrategyKeyword
}

// Search ranks memories by BM25 relevance to the query terms and rescales
// scores to [0,1] by dividing by the best score, so the top result is
// always 1.0.
func (s *KeywordStrategy) Search(ctx context.Context, params Params, ownerID string) ([]Result, error) {
	terms := params.Keywords
	if len(terms) == 0 {
		terms = storage.Tokenize(params.Query)
	}
	if len(terms) == 0 {
		return nil, nil
	}

	memories, err := s.store.SearchLexical(ctx, terms, &storage.LexicalOptions{
		OwnerID: ownerID,
		Limit:   params.topK(),
		Tiers:   params.Tiers,
	})
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, nil
	}

	maxScore := memories[0].Score
	for _, m := range memories {
		if m.Score > maxScore {
			maxScore = m.Score
		}
	}
	if maxScore > 0 {
		for _, m := range memories {
			m.Score = m.Score / maxScore
		}
	}
	return toResults(memories, StrategyKeyword), nil
}

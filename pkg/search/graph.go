package search

import (
	"context"

	"github.com/memgrid/memgrid-go/pkg/storage"
)

// graphSeedLimit caps how many probe hits seed an unseeded traversal.
const graphSeedLimit = 3

// GraphStrategy retrieves memories by traversing related-id links outward
// from a set of seed memories.
type GraphStrategy struct {
	store storage.Store
	depth int
}

// NewGraphStrategy creates a graph strategy. A non-positive depth selects
// the default traversal bound.
func NewGraphStrategy(store storage.Store, depth int) *GraphStrategy {
	if depth <= 0 {
		depth = DefaultGraphDepth
	}
	return &GraphStrategy{store: store, depth: depth}
}

func (s *GraphStrategy) Name() StrategyName {
	return StrategyGraph
}

// Search walks RelatedIDs breadth-first from the seeds, up to the depth
// bound. Seeds score 1.0 and each hop divides relevance, 1/(1+depth).
// Memories belonging to a different owner are skipped. When no seeds are
// supplied, a lexical probe on the query picks them.
func (s *GraphStrategy) Search(ctx context.Context, params Params, ownerID string) ([]Result, error) {
	depth := params.Depth
	if depth <= 0 {
		depth = s.depth
	}

	seeds := params.SeedIDs
	if len(seeds) == 0 {
		probed, err := s.store.SearchLexical(ctx, storage.Tokenize(params.Query), &storage.LexicalOptions{
			OwnerID: ownerID,
			Limit:   graphSeedLimit,
			Tiers:   params.Tiers,
		})
		if err != nil {
			return nil, err
		}
		for _, m := range probed {
			seeds = append(seeds, m.ID)
		}
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	visited := make(map[int64]bool, len(seeds))
	var results []Result
	frontier := seeds

	for d := 0; d <= depth && len(frontier) > 0; d++ {
		var next []int64
		for _, id := range frontier {
			if visited[id] {
				continue
			}
			visited[id] = true

			memory, err := s.store.Get(ctx, id)
			if err != nil {
				// Dangling references are expected: related ids are weak
				// and the target may have been pruned.
				continue
			}
			if memory.OwnerID != ownerID {
				continue
			}
			if !tierAllowed(memory.Tier, params.Tiers) {
				next = append(next, memory.RelatedIDs...)
				continue
			}

			memory.Score = 1.0 / float64(1+d)
			results = append(results, Result{
				Memory:     memory,
				Score:      memory.Score,
				Strategies: []StrategyName{StrategyGraph},
			})
			next = append(next, memory.RelatedIDs...)
		}
		frontier = next
	}

	topK := params.topK()
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func tierAllowed(tier string, tiers []string) bool {
	if len(tiers) == 0 {
		return true
	}
	for _, t := range tiers {
		if t == tier {
			return true
		}
	}
	return false
}

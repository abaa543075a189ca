package search

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HybridStrategy fuses two or more constituent strategies with a weighted
// linear combination of min-max normalized scores.
type HybridStrategy struct {
	strategies map[StrategyName]Strategy
	weights    map[StrategyName]float64
	logger     *zap.Logger
}

// DefaultHybridWeights is the fallback constituent weighting used when a
// query carries no explicit weights.
func DefaultHybridWeights() map[StrategyName]float64 {
	return map[StrategyName]float64{
		StrategySemantic: 0.7,
		StrategyKeyword:  0.3,
	}
}

// NewHybridStrategy creates a hybrid strategy over the given constituents.
// Nil weights select the default semantic+keyword blend; a nil logger
// silences degraded-constituent warnings.
func NewHybridStrategy(strategies []Strategy, weights map[StrategyName]float64, logger *zap.Logger) *HybridStrategy {
	if len(weights) == 0 {
		weights = DefaultHybridWeights()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[StrategyName]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &HybridStrategy{
		strategies: byName,
		weights:    weights,
		logger:     logger,
	}
}

func (s *HybridStrategy) Name() StrategyName {
	return StrategyHybrid
}

// Search fans out to every weighted constituent in parallel, min-max
// normalizes each constituent's scores, and combines them as
// sum(weight * normalized score) with 0 for strategies that did not return
// a memory. Duplicates collapse to one result carrying the combined score
// and the full strategy list. A failing constituent is logged and
// contributes nothing.
func (s *HybridStrategy) Search(ctx context.Context, params Params, ownerID string) ([]Result, error) {
	weights := params.Weights
	if len(weights) == 0 {
		weights = s.weights
	}

	type constituent struct {
		name    StrategyName
		weight  float64
		results []Result
	}

	var mu sync.Mutex
	var runs []constituent

	g, gctx := errgroup.WithContext(ctx)
	for name, weight := range weights {
		strategy, ok := s.strategies[name]
		if !ok || weight <= 0 || name == StrategyHybrid {
			continue
		}
		name, weight, strategy := name, weight, strategy
		g.Go(func() error {
			results, err := strategy.Search(gctx, params, ownerID)
			if err != nil {
				s.logger.Warn("hybrid constituent failed",
					zap.String("strategy", string(name)),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			runs = append(runs, constituent{name: name, weight: weight, results: results})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := make(map[int64]*Result)
	for _, run := range runs {
		normalized := minMaxNormalize(run.results)
		for i, r := range run.results {
			existing, ok := combined[r.Memory.ID]
			if !ok {
				combined[r.Memory.ID] = &Result{
					Memory:     r.Memory,
					Score:      run.weight * normalized[i],
					Strategies: []StrategyName{run.name},
				}
				continue
			}
			existing.Score += run.weight * normalized[i]
			existing.Strategies = append(existing.Strategies, run.name)
		}
	}

	results := make([]Result, 0, len(combined))
	for _, r := range combined {
		r.Memory.Score = r.Score
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	topK := params.topK()
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// minMaxNormalize rescales one constituent's scores to [0,1]. A single
// result, or a constant score across all results, normalizes to 1.0.
func minMaxNormalize(results []Result) []float64 {
	normalized := make([]float64, len(results))
	if len(results) == 0 {
		return normalized
	}

	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	if max == min {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}
	for i, r := range results {
		normalized[i] = (r.Score - min) / (max - min)
	}
	return normalized
}

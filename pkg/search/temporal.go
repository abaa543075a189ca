package search

import (
	"context"
	"time"

	"github.com/memgrid/memgrid-go/pkg/storage"
)

// TemporalStrategy retrieves memories by creation time.
type TemporalStrategy struct {
	store storage.Store
	now   func() time.Time
}

// NewTemporalStrategy creates a temporal strategy.
func NewTemporalStrategy(store storage.Store) *TemporalStrategy {
	return &TemporalStrategy{store: store, now: time.Now}
}

func (s *TemporalStrategy) Name() StrategyName {
	return StrategyTemporal
}

// Search returns memories created inside the window, newest first. Without
// a window the whole history is eligible, so a temporal query with no time
// filter means "most recently created". Scores decay with age so a
// just-created memory approaches 1.0 and older ones fall off smoothly.
func (s *TemporalStrategy) Search(ctx context.Context, params Params, ownerID string) ([]Result, error) {
	now := s.now()
	var from time.Time
	to := now
	if params.Window != nil {
		from = params.Window.From
		if !params.Window.To.IsZero() {
			to = params.Window.To
		}
	}

	memories, err := s.store.SearchTimeRange(ctx, from, to, &storage.RangeOptions{
		OwnerID: ownerID,
		Limit:   params.topK(),
		Tiers:   params.Tiers,
	})
	if err != nil {
		return nil, err
	}

	for _, m := range memories {
		m.Score = recencyScore(now, m.CreatedAt)
	}
	return toResults(memories, StrategyTemporal), nil
}

// recencyScore maps age to 1/(1+age_hours/24): 1.0 now, 0.5 at one day,
// never increasing with age.
func recencyScore(now, createdAt time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return 1.0 / (1.0 + ageHours/24.0)
}

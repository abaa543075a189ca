package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// Mismatched or degenerate inputs score zero.
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func TestRankBM25(t *testing.T) {
	memories := []*Memory{
		{ID: 1, Content: "works as a nurse in Boston"},
		{ID: 2, Content: "nurse nurse nurse shift schedule"},
		{ID: 3, Content: "loves hiking on weekends"},
	}

	ranked := RankBM25(memories, []string{"nurse"})
	require.Len(t, ranked, 2)

	// Higher term frequency ranks first; the non-matching doc is dropped.
	assert.Equal(t, int64(2), ranked[0].ID)
	assert.Equal(t, int64(1), ranked[1].ID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankBM25NoMatches(t *testing.T) {
	memories := []*Memory{
		{ID: 1, Content: "loves hiking on weekends"},
	}
	assert.Empty(t, RankBM25(memories, []string{"nurse"}))
	assert.Empty(t, RankBM25(memories, nil))
	assert.Empty(t, RankBM25(nil, []string{"nurse"}))
}

func TestRankBM25CaseInsensitive(t *testing.T) {
	memories := []*Memory{
		{ID: 1, Content: "Works as a Nurse in Boston."},
	}
	ranked := RankBM25(memories, []string{"NURSE"})
	require.Len(t, ranked, 1)
	assert.Equal(t, int64(1), ranked[0].ID)
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("What's my job? I'm a nurse, in Boston!")
	assert.Contains(t, tokens, "nurse")
	assert.Contains(t, tokens, "boston")
	assert.NotContains(t, tokens, "nurse,")

	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestSortByScore(t *testing.T) {
	memories := []*Memory{
		{ID: 1, Score: 0.2},
		{ID: 2, Score: 0.9},
		{ID: 3, Score: 0.5},
	}

	sorted := SortByScore(memories, 2)
	require.Len(t, sorted, 2)
	assert.Equal(t, int64(2), sorted[0].ID)
	assert.Equal(t, int64(3), sorted[1].ID)

	// Zero limit keeps everything.
	all := SortByScore(memories, 0)
	assert.Len(t, all, 3)
}

func TestMatchCategories(t *testing.T) {
	path := []string{"professional", "healthcare", "nursing"}

	matched, ok := MatchCategories(path, []string{"healthcare"}, false)
	assert.True(t, ok)
	assert.Equal(t, 1, matched)

	matched, ok = MatchCategories(path, []string{"healthcare", "finance"}, false)
	assert.True(t, ok)
	assert.Equal(t, 1, matched)

	_, ok = MatchCategories(path, []string{"healthcare", "finance"}, true)
	assert.False(t, ok)

	matched, ok = MatchCategories(path, []string{"Professional", "NURSING"}, true)
	assert.True(t, ok)
	assert.Equal(t, 2, matched)

	_, ok = MatchCategories(path, nil, false)
	assert.False(t, ok)
}

package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgrid/memgrid-go/pkg/categorizer"
	"github.com/memgrid/memgrid-go/pkg/embedder"
	"github.com/memgrid/memgrid-go/pkg/extractor"
	"github.com/memgrid/memgrid-go/pkg/llm"
	"github.com/memgrid/memgrid-go/pkg/search"
	"github.com/memgrid/memgrid-go/pkg/storage/sqlite"
)

const aliceExtraction = `{"facts": [
	{"content": "Name is Alice", "fact_type": "identity", "confidence": 0.95},
	{"content": "Alice works as a nurse", "fact_type": "profession", "confidence": 0.95},
	{"content": "Alice lives in Boston", "fact_type": "location", "confidence": 0.9},
	{"content": "Alice loves hiking", "fact_type": "preference", "confidence": 0.9}
]}`

const aliceCategories = `{"categories": [
	{"levels": ["personal", "identity"], "confidence": 0.9},
	{"levels": ["professional", "healthcare"], "confidence": 0.9},
	{"levels": ["personal", "location"], "confidence": 0.85},
	{"levels": ["personal", "hobbies"], "confidence": 0.85}
]}`

func newTestClient(t *testing.T, mock *llm.MockProvider) *Client {
	t.Helper()
	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath:        filepath.Join(t.TempDir(), "test.db"),
		EmbeddingDims: 8,
	})
	require.NoError(t, err)

	client, err := NewClient(&Config{},
		WithStore(store),
		WithLLMProvider(mock),
		WithEmbedderProvider(&embedder.MockProvider{Dims: 8}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIngestPipeline(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{aliceExtraction, aliceCategories}}
	client := newTestClient(t, mock)
	ctx := context.Background()

	memories, err := client.Ingest(ctx, "owner_1",
		"I'm Alice, a nurse in Boston. I love hiking.", TierPersonal)
	require.NoError(t, err)
	require.Len(t, memories, 4)

	types := make(map[FactType]bool)
	for _, m := range memories {
		types[m.FactType] = true
		assert.NotZero(t, m.ID)
		assert.Equal(t, "owner_1", m.OwnerID)
		assert.Equal(t, TierPersonal, m.Tier)
		assert.NotNil(t, m.Embedding)
		assert.NotEmpty(t, m.CategoryPath)
	}
	assert.True(t, types[FactIdentity])
	assert.True(t, types[FactProfession])
	assert.True(t, types[FactLocation] || types[FactPreference])

	// Everything is persisted and readable back.
	for _, m := range memories {
		got, err := client.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.Content, got.Content)
	}
}

func TestIngestValidation(t *testing.T) {
	client := newTestClient(t, &llm.MockProvider{})
	ctx := context.Background()

	_, err := client.Ingest(ctx, "", "text", TierPersonal)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.Ingest(ctx, "owner_1", "   ", TierPersonal)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.Ingest(ctx, "owner_1", "text", Tier("archive"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIngestDegradedExtraction(t *testing.T) {
	// Extraction and categorization both return garbage: the input is still
	// stored as one uncategorized fact.
	mock := &llm.MockProvider{Responses: []string{"garbage"}}
	client := newTestClient(t, mock)

	memories, err := client.Ingest(context.Background(), "owner_1",
		"remember this", TierTask)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "remember this", memories[0].Content)
	assert.Equal(t, FactOther, memories[0].FactType)
	assert.Equal(t, []string{"uncategorized"}, memories[0].CategoryPath)
	assert.InDelta(t, 0.5, memories[0].Confidence, 1e-9)
}

func TestIngestWithoutExtraction(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{
		`{"categories": [{"levels": ["personal"], "confidence": 0.8}]}`,
	}}
	client := newTestClient(t, mock)

	memories, err := client.Ingest(context.Background(), "owner_1",
		"verbatim note", TierPersonal, WithoutExtraction())
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "verbatim note", memories[0].Content)
	// Only the categorization call reached the model.
	assert.Len(t, mock.Calls, 1)
}

func TestIngestWithoutEmbeddingsAndBackfill(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{aliceExtraction, aliceCategories}}
	client := newTestClient(t, mock)
	ctx := context.Background()

	memories, err := client.Ingest(ctx, "owner_1",
		"I'm Alice, a nurse in Boston. I love hiking.", TierPersonal,
		WithoutEmbeddings())
	require.NoError(t, err)
	for _, m := range memories {
		assert.Nil(t, m.Embedding)
	}

	stats, err := client.Stats(ctx, "owner_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.WithEmbedding)
	assert.Equal(t, 0.0, stats.EmbeddingCoverage)

	backfilled, err := client.BackfillEmbeddings(ctx, "owner_1")
	require.NoError(t, err)
	assert.Equal(t, 4, backfilled)

	stats, err = client.Stats(ctx, "owner_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.WithEmbedding)
	assert.InDelta(t, 1.0, stats.EmbeddingCoverage, 1e-9)

	// A second backfill finds nothing to do.
	backfilled, err = client.BackfillEmbeddings(ctx, "owner_1")
	require.NoError(t, err)
	assert.Equal(t, 0, backfilled)
}

func TestBatchLinking(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{aliceExtraction, aliceCategories}}
	client := newTestClient(t, mock)
	ctx := context.Background()

	first, err := client.Ingest(ctx, "owner_1",
		"I'm Alice, a nurse in Boston. I love hiking.", TierPersonal)
	require.NoError(t, err)
	require.Len(t, first, 4)

	// Every memory links to exactly the other three of its batch.
	for _, m := range first {
		got, err := client.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Len(t, got.RelatedIDs, 3)
		assert.NotContains(t, got.RelatedIDs, m.ID)
	}

	// A later batch never links back into the first one.
	mock.Responses = []string{
		`{"facts": [
			{"content": "The migration runs tonight", "fact_type": "timeline", "confidence": 0.9},
			{"content": "Rollback plan is in the wiki", "fact_type": "technical", "confidence": 0.9}
		]}`,
		`{"categories": [
			{"levels": ["technical"], "confidence": 0.8},
			{"levels": ["technical"], "confidence": 0.8}
		]}`,
	}
	second, err := client.Ingest(ctx, "owner_1", "Migration tonight, rollback in wiki.", TierProject)
	require.NoError(t, err)
	require.Len(t, second, 2)

	firstIDs := make(map[int64]bool)
	for _, m := range first {
		firstIDs[m.ID] = true
	}
	for _, m := range second {
		got, err := client.Get(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, got.RelatedIDs, 1)
		assert.False(t, firstIDs[got.RelatedIDs[0]])
	}
}

func TestIngestWithoutLinking(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{aliceExtraction, aliceCategories}}
	client := newTestClient(t, mock)
	ctx := context.Background()

	memories, err := client.Ingest(ctx, "owner_1",
		"I'm Alice, a nurse in Boston. I love hiking.", TierPersonal,
		WithoutLinking())
	require.NoError(t, err)
	for _, m := range memories {
		got, err := client.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Empty(t, got.RelatedIDs)
	}
}

func TestSearchRanksProfessionForJobQuery(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{
		aliceExtraction,
		aliceCategories,
		`{"strategy": "keyword", "confidence": 0.9, "keywords": ["job", "work", "nurse"]}`,
	}}
	client := newTestClient(t, mock)
	ctx := context.Background()

	_, err := client.Ingest(ctx, "owner_1",
		"I'm Alice, a nurse in Boston. I love hiking.", TierPersonal)
	require.NoError(t, err)

	results, err := client.Search(ctx, "owner_1", "What's my job?")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Memory.Content, "nurse")
	for _, r := range results {
		assert.NotContains(t, r.Memory.Content, "hiking")
	}
}

func TestSearchTemporalOverrideNewestFirst(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{"garbage"}}
	client := newTestClient(t, mock)
	ctx := context.Background()

	base := time.Now()
	// The first note is weeks old: an override with no time filter must
	// still reach it.
	ages := []time.Duration{-20 * 24 * time.Hour, -2 * time.Hour, -1 * time.Hour}
	for i, text := range []string{"first note", "second note", "third note"} {
		created := base.Add(ages[i])
		client.now = func() time.Time { return created }
		_, err := client.Ingest(ctx, "owner_1", text, TierTask, WithoutExtraction(), WithoutCategorization())
		require.NoError(t, err)
	}
	client.now = time.Now

	results, err := client.Search(ctx, "owner_1", "recent notes",
		WithStrategy(search.StrategyTemporal))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "third note", results[0].Memory.Content)
	assert.Equal(t, "second note", results[1].Memory.Content)
	assert.Equal(t, "first note", results[2].Memory.Content)
	// The forced strategy never consults the model.
	assert.Empty(t, mock.Calls)
}

func TestSearchTouchesResults(t *testing.T) {
	mock := &llm.MockProvider{Responses: []string{"garbage"}}
	client := newTestClient(t, mock)
	ctx := context.Background()

	memories, err := client.Ingest(ctx, "owner_1", "a nurse in Boston",
		TierPersonal, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)
	require.Len(t, memories, 1)

	_, err = client.Search(ctx, "owner_1", "nurse", WithStrategy(search.StrategyKeyword))
	require.NoError(t, err)
	_, err = client.Search(ctx, "owner_1", "nurse", WithStrategy(search.StrategyKeyword))
	require.NoError(t, err)

	got, err := client.Get(ctx, memories[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AccessCount)
}

func TestSearchTierFilter(t *testing.T) {
	mock := &llm.MockProvider{}
	client := newTestClient(t, mock)
	ctx := context.Background()

	_, err := client.Ingest(ctx, "owner_1", "personal nurse fact",
		TierPersonal, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)
	_, err = client.Ingest(ctx, "owner_1", "task nurse fact",
		TierTask, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)

	results, err := client.Search(ctx, "owner_1", "nurse",
		WithStrategy(search.StrategyKeyword), WithTiers(TierTask))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "task nurse fact", results[0].Memory.Content)
}

func TestSearchValidation(t *testing.T) {
	client := newTestClient(t, &llm.MockProvider{})
	ctx := context.Background()

	_, err := client.Search(ctx, "", "query")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.Search(ctx, "owner_1", "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.Search(ctx, "owner_1", "query", WithTiers(Tier("archive")))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRetention(t *testing.T) {
	mock := &llm.MockProvider{}
	client := newTestClient(t, mock)
	ctx := context.Background()
	now := time.Now()

	// A task memory past the 30-day TTL and a personal one far older.
	client.now = func() time.Time { return now.Add(-31 * 24 * time.Hour) }
	expired, err := client.Ingest(ctx, "owner_1", "stale task detail",
		TierTask, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)

	client.now = func() time.Time { return now.Add(-365 * 24 * time.Hour) }
	durable, err := client.Ingest(ctx, "owner_1", "born in Ohio",
		TierPersonal, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)

	client.now = func() time.Time { return now }
	removed, err := client.RunRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = client.Get(ctx, expired[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Personal memories survive regardless of age.
	_, err = client.Get(ctx, durable[0].ID)
	assert.NoError(t, err)

	// Nothing newly expired: the second sweep is a no-op.
	removed, err = client.RunRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestDelete(t *testing.T) {
	client := newTestClient(t, &llm.MockProvider{})
	ctx := context.Background()

	memories, err := client.Ingest(ctx, "owner_1", "disposable",
		TierTask, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, memories[0].ID))
	assert.ErrorIs(t, client.Delete(ctx, memories[0].ID), ErrNotFound)

	_, err = client.Get(ctx, memories[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsReport(t *testing.T) {
	client := newTestClient(t, &llm.MockProvider{})
	ctx := context.Background()

	_, err := client.Ingest(ctx, "owner_1", "fact one",
		TierPersonal, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)
	_, err = client.Ingest(ctx, "owner_1", "fact two",
		TierTask, WithoutExtraction(), WithoutCategorization(), WithoutEmbeddings())
	require.NoError(t, err)

	stats, err := client.Stats(ctx, "owner_1")
	require.NoError(t, err)
	assert.Equal(t, "owner_1", stats.OwnerID)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByTier[TierPersonal])
	assert.Equal(t, int64(1), stats.ByTier[TierTask])
	assert.Equal(t, int64(2), stats.ByCategory["uncategorized"])
	assert.Equal(t, int64(1), stats.WithEmbedding)
	assert.InDelta(t, 0.5, stats.EmbeddingCoverage, 1e-9)
}

func TestIngestSkipsMismatchedEmbeddingDimensions(t *testing.T) {
	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath:        filepath.Join(t.TempDir(), "test.db"),
		EmbeddingDims: 8,
	})
	require.NoError(t, err)

	// Misconfigured deployment: the embedder produces 4-dim vectors while
	// the store is fixed at 8. Validation catches the mismatch before the
	// store does, and nothing is persisted silently.
	client, err := NewClient(&Config{},
		WithStore(store),
		WithLLMProvider(&llm.MockProvider{}),
		WithEmbedderProvider(&embedder.MockProvider{Dims: 4}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	memories, err := client.Ingest(ctx, "owner_1", "short note",
		TierPersonal, WithoutExtraction(), WithoutCategorization())
	require.NoError(t, err)
	assert.Empty(t, memories)

	stats, err := client.Stats(ctx, "owner_1")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// Empty config with no injected providers cannot build anything.
	_, err = NewClient(&Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// The extraction and categorization packages mirror the data model's fact
// types and category depth to stay importable from here. The mirrors must
// not drift.
func TestExtractorMirrorsStayAligned(t *testing.T) {
	mirrored := extractor.FactTypes()
	require.Len(t, mirrored, 13)
	for _, ft := range mirrored {
		assert.True(t, FactType(ft).Valid(), string(ft))
	}
	assert.Equal(t, FactType(extractor.FactOther), FactOther)
	assert.Equal(t, MaxCategoryDepth, categorizer.MaxLevels)
}

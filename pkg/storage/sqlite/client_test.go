package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgrid/memgrid-go/pkg/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		DBPath:        filepath.Join(t.TempDir(), "test.db"),
		EmbeddingDims: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testMemory(id int64, owner string) *storage.Memory {
	return &storage.Memory{
		ID:           id,
		OwnerID:      owner,
		Tier:         "personal",
		Content:      "works as a nurse in Boston",
		Embedding:    []float64{0.1, 0.2, 0.3, 0.4},
		CategoryPath: []string{"professional", "healthcare"},
		FactType:     "profession",
		Confidence:   0.9,
		CreatedAt:    time.Now(),
		AccessedAt:   time.Now(),
	}
}

func TestInsertAndGet(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := testMemory(1, "owner_1")
	memory.RelatedIDs = []int64{2, 3}
	require.NoError(t, client.Insert(ctx, memory))

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, memory.OwnerID, got.OwnerID)
	assert.Equal(t, memory.Tier, got.Tier)
	assert.Equal(t, memory.Content, got.Content)
	assert.Equal(t, memory.Embedding, got.Embedding)
	assert.Equal(t, memory.CategoryPath, got.CategoryPath)
	assert.Equal(t, memory.FactType, got.FactType)
	assert.InDelta(t, memory.Confidence, got.Confidence, 1e-9)
	assert.Equal(t, []int64{2, 3}, got.RelatedIDs)
}

func TestGetNotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Get(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsertNilEmbedding(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := testMemory(1, "owner_1")
	memory.Embedding = nil
	require.NoError(t, client.Insert(ctx, memory))

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)

	// Vector search never surfaces embedding-less rows.
	results, err := client.SearchVector(ctx, []float64{0.1, 0.2, 0.3, 0.4}, &storage.VectorOptions{
		OwnerID: "owner_1",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVector(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	near := testMemory(1, "owner_1")
	near.Embedding = []float64{1, 0, 0, 0}
	require.NoError(t, client.Insert(ctx, near))

	far := testMemory(2, "owner_1")
	far.Content = "loves hiking"
	far.Embedding = []float64{0, 1, 0, 0}
	require.NoError(t, client.Insert(ctx, far))

	other := testMemory(3, "owner_2")
	other.Embedding = []float64{1, 0, 0, 0}
	require.NoError(t, client.Insert(ctx, other))

	results, err := client.SearchVector(ctx, []float64{1, 0, 0, 0}, &storage.VectorOptions{
		OwnerID:  "owner_1",
		MinScore: 0.7,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSearchVectorTierFilter(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	personal := testMemory(1, "owner_1")
	personal.Embedding = []float64{1, 0, 0, 0}
	require.NoError(t, client.Insert(ctx, personal))

	task := testMemory(2, "owner_1")
	task.Tier = "task"
	task.Embedding = []float64{1, 0, 0, 0}
	require.NoError(t, client.Insert(ctx, task))

	results, err := client.SearchVector(ctx, []float64{1, 0, 0, 0}, &storage.VectorOptions{
		OwnerID: "owner_1",
		Tiers:   []string{"task"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestSearchLexical(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	m1 := testMemory(1, "owner_1")
	require.NoError(t, client.Insert(ctx, m1))

	m2 := testMemory(2, "owner_1")
	m2.Content = "loves hiking on weekends"
	require.NoError(t, client.Insert(ctx, m2))

	results, err := client.SearchLexical(ctx, []string{"nurse"}, &storage.LexicalOptions{
		OwnerID: "owner_1",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearchCategory(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	m1 := testMemory(1, "owner_1")
	require.NoError(t, client.Insert(ctx, m1))

	m2 := testMemory(2, "owner_1")
	m2.CategoryPath = []string{"personal", "hobbies"}
	require.NoError(t, client.Insert(ctx, m2))

	anyHits, err := client.SearchCategory(ctx, []string{"healthcare", "hobbies"}, false, &storage.CategoryOptions{
		OwnerID: "owner_1",
	})
	require.NoError(t, err)
	assert.Len(t, anyHits, 2)

	allHits, err := client.SearchCategory(ctx, []string{"professional", "healthcare"}, true, &storage.CategoryOptions{
		OwnerID: "owner_1",
	})
	require.NoError(t, err)
	require.Len(t, allHits, 1)
	assert.Equal(t, int64(1), allHits[0].ID)
	assert.InDelta(t, 1.0, allHits[0].Score, 1e-9)
}

func TestSearchTimeRange(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	old := testMemory(1, "owner_1")
	old.CreatedAt = now.Add(-48 * time.Hour)
	require.NoError(t, client.Insert(ctx, old))

	recent := testMemory(2, "owner_1")
	recent.CreatedAt = now.Add(-1 * time.Hour)
	require.NoError(t, client.Insert(ctx, recent))

	results, err := client.SearchTimeRange(ctx, now.Add(-24*time.Hour), now, &storage.RangeOptions{
		OwnerID: "owner_1",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)

	// Zero from means unbounded past, newest first.
	all, err := client.SearchTimeRange(ctx, time.Time{}, now, &storage.RangeOptions{
		OwnerID: "owner_1",
	})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].ID)
	assert.Equal(t, int64(1), all[1].ID)
}

func TestTouch(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := testMemory(1, "owner_1")
	accessedAt := time.Now().Add(-time.Hour)
	memory.AccessedAt = accessedAt
	require.NoError(t, client.Insert(ctx, memory))

	require.NoError(t, client.Touch(ctx, []int64{1}))
	require.NoError(t, client.Touch(ctx, []int64{1}))

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AccessCount)
	assert.True(t, got.AccessedAt.After(accessedAt))

	// Empty id set is a no-op.
	assert.NoError(t, client.Touch(ctx, nil))
}

func TestAppendRelated(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := testMemory(1, "owner_1")
	require.NoError(t, client.Insert(ctx, memory))

	require.NoError(t, client.AppendRelated(ctx, 1, []int64{2, 3}))
	// Duplicates and the memory's own id are skipped.
	require.NoError(t, client.AppendRelated(ctx, 1, []int64{3, 1, 4}))

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, got.RelatedIDs)
}

func TestUpdateEmbedding(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := testMemory(1, "owner_1")
	memory.Embedding = nil
	require.NoError(t, client.Insert(ctx, memory))

	require.NoError(t, client.UpdateEmbedding(ctx, 1, []float64{1, 0, 0, 0}))

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0}, got.Embedding)

	assert.ErrorIs(t, client.UpdateEmbedding(ctx, 99, []float64{1, 0, 0, 0}), storage.ErrNotFound)
}

func TestDimensionMismatchRejected(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := testMemory(1, "owner_1")
	memory.Embedding = []float64{0.1, 0.2, 0.3}
	err := client.Insert(ctx, memory)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	memory.Embedding = nil
	require.NoError(t, client.Insert(ctx, memory))
	assert.ErrorIs(t, client.UpdateEmbedding(ctx, 1, []float64{1, 0, 0}),
		storage.ErrDimensionMismatch)

	// Nil stays allowed: the row waits for backfill.
	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)
}

func TestDelete(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "owner_1")))
	require.NoError(t, client.Delete(ctx, 1))

	_, err := client.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, client.Delete(ctx, 1), storage.ErrNotFound)
}

func TestDeleteExpired(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	expired := testMemory(1, "owner_1")
	expired.Tier = "task"
	expired.CreatedAt = now.Add(-31 * 24 * time.Hour)
	require.NoError(t, client.Insert(ctx, expired))

	fresh := testMemory(2, "owner_1")
	fresh.Tier = "task"
	fresh.CreatedAt = now.Add(-1 * 24 * time.Hour)
	require.NoError(t, client.Insert(ctx, fresh))

	oldPersonal := testMemory(3, "owner_1")
	oldPersonal.CreatedAt = now.Add(-365 * 24 * time.Hour)
	require.NoError(t, client.Insert(ctx, oldPersonal))

	cutoff := now.Add(-30 * 24 * time.Hour)
	removed, err := client.DeleteExpired(ctx, "task", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Idempotent: nothing newly expired, second sweep removes nothing.
	removed, err = client.DeleteExpired(ctx, "task", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	_, err = client.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Other tiers are untouched regardless of age.
	_, err = client.Get(ctx, 3)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	m1 := testMemory(1, "owner_1")
	require.NoError(t, client.Insert(ctx, m1))

	m2 := testMemory(2, "owner_1")
	m2.Tier = "task"
	m2.CategoryPath = []string{"personal", "hobbies"}
	m2.Embedding = nil
	require.NoError(t, client.Insert(ctx, m2))

	require.NoError(t, client.Insert(ctx, testMemory(3, "owner_2")))

	stats, err := client.Stats(ctx, "owner_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByTier["personal"])
	assert.Equal(t, int64(1), stats.ByTier["task"])
	assert.Equal(t, int64(1), stats.ByCategory["professional"])
	assert.Equal(t, int64(1), stats.ByCategory["personal"])
	assert.Equal(t, int64(1), stats.WithEmbedding)

	// Empty owner aggregates across all owners.
	global, err := client.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), global.Total)
}

package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: 3,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewChromemStore_Defaults(t *testing.T) {
	store, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "vectord_default", store.config.DefaultCollection)
	assert.Equal(t, 384, store.config.VectorSize)
}

func TestChromemStore_UpsertAndSearch(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "exact", Content: "exact match", Vector: []float32{1, 0, 0}},
		{ID: "close", Content: "near match", Vector: []float32{0.9, 0.1, 0}},
		{ID: "orthogonal", Content: "unrelated", Vector: []float32{0, 1, 0}},
		{ID: "diagonal", Content: "half related", Vector: []float32{0.5, 0.5, 0}},
	}

	ids, err := store.Upsert(ctx, "docs", docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "close", "orthogonal", "diagonal"}, ids)

	results, err := store.Search(ctx, "docs", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "close", results[1].ID)
	assert.Equal(t, "diagonal", results[2].ID)
	assert.Equal(t, "exact match", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestChromemStore_Upsert_PreservesMetadata(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "docs", []Document{
		{
			ID:       "doc1",
			Content:  "tagged document",
			Vector:   []float32{1, 0, 0},
			Metadata: map[string]string{"source": "unit-test", "lang": "en"},
		},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "docs", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "unit-test", results[0].Metadata["source"])
	assert.Equal(t, "en", results[0].Metadata["lang"])
}

func TestChromemStore_Upsert_EmptyDocuments(t *testing.T) {
	store := newTestChromemStore(t)

	_, err := store.Upsert(context.Background(), "docs", nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestChromemStore_Upsert_DimensionMismatch(t *testing.T) {
	store := newTestChromemStore(t)

	_, err := store.Upsert(context.Background(), "docs", []Document{
		{ID: "bad", Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_Upsert_AutoGeneratesIDs(t *testing.T) {
	store := newTestChromemStore(t)

	ids, err := store.Upsert(context.Background(), "docs", []Document{
		{Content: "anonymous", Vector: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestChromemStore_Search_CollectionNotFound(t *testing.T) {
	store := newTestChromemStore(t)

	_, err := store.Search(context.Background(), "missing", []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemStore_Search_EmptyCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCollection(ctx, "empty", 3))

	results, err := store.Search(ctx, "empty", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Search_CapsKAtDocumentCount(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "docs", []Document{
		{ID: "only", Content: "single", Vector: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "docs", []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_Search_InvalidK(t *testing.T) {
	store := newTestChromemStore(t)

	_, err := store.Search(context.Background(), "docs", []float32{1, 0, 0}, 0)
	assert.Error(t, err)
}

func TestChromemStore_Search_DimensionMismatch(t *testing.T) {
	store := newTestChromemStore(t)

	_, err := store.Search(context.Background(), "docs", []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_ExactSearch_MatchesSearch(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "docs", []Document{
		{ID: "a", Vector: []float32{1, 0, 0}},
		{ID: "b", Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)

	query := []float32{0.7, 0.3, 0}
	approx, err := store.Search(ctx, "docs", query, 2)
	require.NoError(t, err)
	exact, err := store.ExactSearch(ctx, "docs", query, 2)
	require.NoError(t, err)
	assert.Equal(t, approx, exact)
}

func TestChromemStore_Delete(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "docs", []Document{
		{ID: "keep", Vector: []float32{1, 0, 0}},
		{ID: "drop", Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "docs", []string{"drop"}))

	info, err := store.GetCollectionInfo(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, info.PointCount)

	results, err := store.Search(ctx, "docs", []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].ID)
}

func TestChromemStore_Delete_NoIDs(t *testing.T) {
	store := newTestChromemStore(t)

	assert.NoError(t, store.Delete(context.Background(), "docs", nil))
}

func TestChromemStore_CollectionLifecycle(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	exists, err := store.CollectionExists(ctx, "lifecycle")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateCollection(ctx, "lifecycle", 3))

	exists, err = store.CollectionExists(ctx, "lifecycle")
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.CreateCollection(ctx, "lifecycle", 3)
	assert.ErrorIs(t, err, ErrCollectionExists)

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "lifecycle")

	info, err := store.GetCollectionInfo(ctx, "lifecycle")
	require.NoError(t, err)
	assert.Equal(t, "lifecycle", info.Name)
	assert.Equal(t, 0, info.PointCount)
	assert.Equal(t, 3, info.VectorSize)

	require.NoError(t, store.DeleteCollection(ctx, "lifecycle"))

	exists, err = store.CollectionExists(ctx, "lifecycle")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemStore_CreateCollection_RejectsMismatchedSize(t *testing.T) {
	store := newTestChromemStore(t)

	err := store.CreateCollection(context.Background(), "wrong_size", 768)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_DefaultCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "", []Document{
		{ID: "doc", Vector: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	exists, err := store.CollectionExists(ctx, "vectord_default")
	require.NoError(t, err)
	assert.True(t, exists)

	results, err := store.Search(ctx, "", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_InvalidCollectionName(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	for _, name := range []string{"Has-Dash", "UPPER", "spaces here", "dotted.name"} {
		_, err := store.Upsert(ctx, name, []Document{{ID: "x", Vector: []float32{1, 0, 0}}})
		assert.ErrorIs(t, err, ErrInvalidCollectionName, "name %q", name)
	}
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	_, err = first.Upsert(ctx, "durable", []Document{
		{ID: "persisted", Content: "still here", Vector: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	results, err := second.Search(ctx, "durable", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted", results[0].ID)
	assert.Equal(t, "still here", results[0].Content)
}

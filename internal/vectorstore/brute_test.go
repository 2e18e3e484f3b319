package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBruteSearch_Ordering(t *testing.T) {
	docs := []Document{
		{ID: "orthogonal", Vector: []float32{0, 1, 0}},
		{ID: "exact", Vector: []float32{1, 0, 0}},
		{ID: "diagonal", Vector: []float32{0.5, 0.5, 0}},
		{ID: "close", Vector: []float32{0.9, 0.1, 0}},
	}

	results := BruteSearch([]float32{1, 0, 0}, docs, 3)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "close", results[1].ID)
	assert.Equal(t, "diagonal", results[2].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestBruteSearch_KLargerThanCorpus(t *testing.T) {
	docs := []Document{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	}

	results := BruteSearch([]float32{1, 0}, docs, 10)
	assert.Len(t, results, 2)
}

func TestBruteSearch_EmptyInputs(t *testing.T) {
	assert.Empty(t, BruteSearch([]float32{1, 0}, nil, 5))
	assert.Empty(t, BruteSearch([]float32{1, 0}, []Document{{ID: "a", Vector: []float32{1, 0}}}, 0))
}

func TestBruteSearch_CarriesContentAndMetadata(t *testing.T) {
	docs := []Document{
		{
			ID:       "doc",
			Content:  "payload",
			Vector:   []float32{1, 0},
			Metadata: map[string]string{"kind": "test"},
		},
	}

	results := BruteSearch([]float32{1, 0}, docs, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "payload", results[0].Content)
	assert.Equal(t, "test", results[0].Metadata["kind"])
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "scaled", a: []float32{1, 1}, b: []float32{5, 5}, want: 1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1, 0, 0}, b: []float32{1, 0}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

// stubStore counts Search calls and answers from a fixed function.
type stubStore struct {
	mu       sync.Mutex
	searches int
	searchFn func(vector []float32, k int) ([]SearchResult, error)
}

func (s *stubStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()
	return s.searchFn(vector, k)
}

func (s *stubStore) ExactSearch(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error) {
	return s.Search(ctx, collection, vector, k)
}

func (s *stubStore) Upsert(context.Context, string, []Document) ([]string, error) { return nil, nil }
func (s *stubStore) Delete(context.Context, string, []string) error               { return nil }
func (s *stubStore) CreateCollection(context.Context, string, int) error          { return nil }
func (s *stubStore) DeleteCollection(context.Context, string) error               { return nil }
func (s *stubStore) CollectionExists(context.Context, string) (bool, error)       { return true, nil }
func (s *stubStore) ListCollections(context.Context) ([]string, error)            { return nil, nil }
func (s *stubStore) GetCollectionInfo(context.Context, string) (*CollectionInfo, error) {
	return nil, nil
}
func (s *stubStore) Close() error { return nil }

func TestSearchBatch_PreservesQueryOrder(t *testing.T) {
	store := &stubStore{
		searchFn: func(vector []float32, k int) ([]SearchResult, error) {
			return []SearchResult{{ID: fmt.Sprintf("hit_%.0f", vector[0]), Score: 1}}, nil
		},
	}

	queries := make([][]float32, 70)
	for i := range queries {
		queries[i] = []float32{float32(i)}
	}

	results, err := SearchBatch(context.Background(), store, "docs", queries, 5)
	require.NoError(t, err)
	require.Len(t, results, 70)
	assert.Equal(t, 70, store.searches)
	for i, result := range results {
		require.Len(t, result, 1)
		assert.Equal(t, fmt.Sprintf("hit_%d", i), result[0].ID)
	}
}

func TestSearchBatch_EmptyQueries(t *testing.T) {
	store := &stubStore{searchFn: func([]float32, int) ([]SearchResult, error) { return nil, nil }}

	results, err := SearchBatch(context.Background(), store, "docs", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, store.searches)
}

func TestSearchBatch_PropagatesSearchError(t *testing.T) {
	boom := errors.New("backend down")
	store := &stubStore{
		searchFn: func([]float32, int) ([]SearchResult, error) { return nil, boom },
	}

	_, err := SearchBatch(context.Background(), store, "docs", [][]float32{{1}}, 5)
	assert.ErrorIs(t, err, boom)
}

func TestSearchBatch_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &stubStore{
		searchFn: func([]float32, int) ([]SearchResult, error) {
			cancel()
			return []SearchResult{}, nil
		},
	}

	queries := make([][]float32, searchBatchSize*3)
	for i := range queries {
		queries[i] = []float32{1}
	}

	_, err := SearchBatch(ctx, store, "docs", queries, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, store.searches, searchBatchSize,
		"cancellation must stop the run at a batch boundary")
}

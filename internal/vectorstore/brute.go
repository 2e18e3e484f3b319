package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// searchBatchSize is the number of queries per Store round trip in
// SearchBatch. Large runs (evaluation sweeps fire thousands of
// queries) get bounded memory and a cancellation point per batch.
const searchBatchSize = 32

// BruteSearch scores every document against the query with cosine
// similarity and returns the top k, best first. It needs no store and
// no index, which makes it the ground truth to validate approximate
// backends against.
func BruteSearch(query []float32, docs []Document, k int) []SearchResult {
	if k <= 0 || len(docs) == 0 {
		return []SearchResult{}
	}

	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, SearchResult{
			ID:       doc.ID,
			Content:  doc.Content,
			Score:    cosineSimilarity(query, doc.Vector),
			Metadata: doc.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}

// cosineSimilarity computes dot(a,b) / (|a| |b|) with float64
// accumulation. Mismatched lengths or a zero-magnitude vector score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// SearchBatch runs many queries against a store in fixed-size batches,
// returning one result slice per query in input order. Cancellation is
// checked between batches so an abandoned evaluation run stops early.
func SearchBatch(ctx context.Context, store Store, collection string, queries [][]float32, k int) ([][]SearchResult, error) {
	results := make([][]SearchResult, 0, len(queries))
	for start := 0; start < len(queries); start += searchBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + searchBatchSize
		if end > len(queries) {
			end = len(queries)
		}
		for i, query := range queries[start:end] {
			found, err := store.Search(ctx, collection, query, k)
			if err != nil {
				return nil, fmt.Errorf("query %d: %w", start+i, err)
			}
			results = append(results, found)
		}
	}
	return results, nil
}

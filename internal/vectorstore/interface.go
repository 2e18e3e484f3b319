// Package vectorstore persists embedding vectors and serves top-k
// similarity search over them.
//
// Stores receive precomputed vectors; embedding happens upstream in
// the embedder service. Two backends implement Store: chromem
// (embedded, pure Go, default) and qdrant (external server over gRPC).
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrDimensionMismatch indicates a vector whose length does not
	// match the store's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to qdrant")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special characters, path traversal, and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}

// Store is the interface for vector storage operations.
//
// Implementations are transport-agnostic. An empty collection argument
// means the store's configured default collection.
type Store interface {
	// Upsert inserts or replaces documents with their vectors.
	// Documents without an ID get one generated. Returns the stored IDs.
	Upsert(ctx context.Context, collection string, docs []Document) ([]string, error)

	// Search returns up to k documents most similar to the query
	// vector, ordered by similarity score (highest first).
	Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error)

	// ExactSearch is Search with any approximate index bypassed. For
	// backends that always search exactly it is identical to Search;
	// for qdrant it disables HNSW, which returns nothing on
	// collections too small for the index to build.
	ExactSearch(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, collection string, ids []string) error

	// CreateCollection creates a collection for vectors of the given
	// dimension. Fails with ErrCollectionExists if it already exists.
	CreateCollection(ctx context.Context, collection string, vectorSize int) error

	// DeleteCollection drops a collection and all its documents.
	DeleteCollection(ctx context.Context, collection string) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns point count and vector size.
	// Returns ErrCollectionNotFound if the collection doesn't exist.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// Close releases store resources.
	Close() error
}

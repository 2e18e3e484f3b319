package vectorstore

// Document is a text with its precomputed embedding vector.
type Document struct {
	// ID is the unique identifier. Empty IDs are generated on upsert.
	ID string

	// Content is the original text.
	Content string

	// Vector is the embedding, produced by the embedder service. Its
	// length must match the store's configured dimension.
	Vector []float32

	// Metadata carries key-value pairs for later inspection.
	Metadata map[string]string
}

// SearchResult is one similarity match.
type SearchResult struct {
	// ID is the document identifier.
	ID string `json:"id"`

	// Content is the document text.
	Content string `json:"content"`

	// Score is the similarity score (higher = more similar).
	Score float32 `json:"score"`

	// Metadata contains the document metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

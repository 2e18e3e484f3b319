package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/encode"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

const defaultSearchK = 10

// EmbedRequest is the request body for POST /v1/embed. Kind selects
// instruction handling: "query", "passage" or "" for none.
type EmbedRequest struct {
	Texts []string `json:"texts"`
	Kind  string   `json:"kind,omitempty"`
}

// EmbedResponse is the response body for POST /v1/embed.
type EmbedResponse struct {
	Vectors   [][]float32 `json:"vectors"`
	Model     string      `json:"model"`
	Dimension int         `json:"dimension"`
	Count     int         `json:"count"`
}

// SearchRequest is the request body for POST /v1/search.
type SearchRequest struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
	K          int    `json:"k,omitempty"`
	Exact      bool   `json:"exact,omitempty"`
}

// SearchResponse is the response body for POST /v1/search.
type SearchResponse struct {
	Results []vectorstore.SearchResult `json:"results"`
	Count   int                        `json:"count"`
}

// IngestDocument is one document in an ingest request. The vector is
// computed server-side with passage instructions applied.
type IngestDocument struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestRequest is the request body for POST /v1/documents.
type IngestRequest struct {
	Collection string           `json:"collection,omitempty"`
	Documents  []IngestDocument `json:"documents"`
}

// IngestResponse is the response body for POST /v1/documents.
type IngestResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// DeleteRequest is the request body for DELETE /v1/documents.
type DeleteRequest struct {
	Collection string   `json:"collection,omitempty"`
	IDs        []string `json:"ids"`
}

func (s *Server) handleEmbed(c echo.Context) error {
	var req EmbedRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid embed request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Texts) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "texts field is required")
	}

	ctx := c.Request().Context()
	var (
		vectors [][]float32
		err     error
	)
	switch req.Kind {
	case "query":
		vectors, err = s.embedder.EncodeQueries(ctx, req.Texts, encode.Options{})
	case "passage":
		vectors, err = s.embedder.EncodeCorpus(ctx, req.Texts, encode.Options{})
	case "":
		vectors, err = s.embedder.Encode(ctx, req.Texts, encode.Options{})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be \"query\", \"passage\" or empty")
	}
	if err != nil {
		s.logger.Error("embed failed",
			zap.Int("texts", len(req.Texts)),
			zap.String("kind", req.Kind),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "encoding failed")
	}

	return c.JSON(http.StatusOK, EmbedResponse{
		Vectors:   vectors,
		Model:     s.config.Model,
		Dimension: s.config.Dimension,
		Count:     len(vectors),
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.K < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "k must be positive")
	}
	if req.K == 0 {
		req.K = defaultSearchK
	}

	ctx := c.Request().Context()
	vectors, err := s.embedder.EncodeQueries(ctx, []string{req.Query}, encode.Options{})
	if err != nil {
		s.logger.Error("query embedding failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "encoding failed")
	}

	search := s.store.Search
	if req.Exact {
		search = s.store.ExactSearch
	}
	results, err := search(ctx, req.Collection, vectors[0], req.K)
	if err != nil {
		return s.storeError(c, "search", err)
	}

	return c.JSON(http.StatusOK, SearchResponse{
		Results: results,
		Count:   len(results),
	})
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}
	for i, doc := range req.Documents {
		if doc.Content == "" {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("document %d has empty content", i))
		}
	}

	ctx := c.Request().Context()
	contents := make([]string, len(req.Documents))
	for i, doc := range req.Documents {
		contents[i] = doc.Content
	}

	vectors, err := s.embedder.EncodeCorpus(ctx, contents, encode.Options{})
	if err != nil {
		s.logger.Error("ingest embedding failed",
			zap.Int("documents", len(req.Documents)),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "encoding failed")
	}

	docs := make([]vectorstore.Document, len(req.Documents))
	for i, doc := range req.Documents {
		docs[i] = vectorstore.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Vector:   vectors[i],
			Metadata: doc.Metadata,
		}
	}

	ids, err := s.store.Upsert(ctx, req.Collection, docs)
	if err != nil {
		return s.storeError(c, "ingest", err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		IDs:   ids,
		Count: len(ids),
	})
}

func (s *Server) handleDelete(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid delete request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids field is required")
	}

	if err := s.store.Delete(c.Request().Context(), req.Collection, req.IDs); err != nil {
		return s.storeError(c, "delete", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// storeError maps vector store failures onto HTTP statuses. Client
// mistakes get the sentinel's message, everything else a generic 500.
func (s *Server) storeError(c echo.Context, operation string, err error) error {
	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "collection not found")
	case errors.Is(err, vectorstore.ErrInvalidCollectionName),
		errors.Is(err, vectorstore.ErrEmptyDocuments),
		errors.Is(err, vectorstore.ErrDimensionMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "store operation failed")
	}
}

package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port. Default: 6334
	Port int

	// DefaultCollection is the collection used when callers pass "".
	// Default: "vectord_default"
	DefaultCollection string

	// VectorSize is the embedding dimension for created collections.
	// Default: 384
	VectorSize uint64

	// Distance is the similarity metric: "cosine", "euclid", "dot" or
	// "manhattan". Default: "cosine"
	Distance string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey authenticates against a secured Qdrant deployment.
	APIKey string

	// MaxRetries is the number of retries for transient failures.
	// Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per attempt.
	// Default: 100ms
	RetryBackoff time.Duration

	// MaxMessageSize is the gRPC message size limit in bytes.
	// Default: 100MB, large batches of vectors need room.
	MaxMessageSize int

	// CircuitBreakerThreshold is the consecutive-failure count that
	// opens the breaker. Default: 5
	CircuitBreakerThreshold int

	// CircuitBreakerResetTimeout is how long the breaker stays open.
	// Default: 30s
	CircuitBreakerResetTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.DefaultCollection == "" {
		c.DefaultCollection = "vectord_default"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.Distance == "" {
		c.Distance = "cosine"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 100 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerResetTimeout == 0 {
		c.CircuitBreakerResetTimeout = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	if _, err := distanceFromString(c.Distance); err != nil {
		return err
	}
	return nil
}

func distanceFromString(name string) (qdrant.Distance, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return qdrant.Distance_Cosine, nil
	case "euclid", "euclidean":
		return qdrant.Distance_Euclid, nil
	case "dot":
		return qdrant.Distance_Dot, nil
	case "manhattan":
		return qdrant.Distance_Manhattan, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("%w: unknown distance %q", ErrInvalidConfig, name)
	}
}

// circuitBreaker stops hammering a Qdrant server that keeps failing.
// After threshold consecutive failures all calls are rejected until
// resetTimeout has passed.
type circuitBreaker struct {
	mu           sync.Mutex
	failureCount int
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
}

func newCircuitBreaker(threshold int, resetTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.failureCount < cb.threshold {
		return true
	}
	if time.Since(cb.lastFailure) > cb.resetTimeout {
		cb.failureCount = 0
		return true
	}
	return false
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount++
	cb.lastFailure = time.Now()
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store against a remote Qdrant server over
// gRPC, with retries and a circuit breaker for transient failures.
type QdrantStore struct {
	client  *qdrant.Client
	config  QdrantConfig
	logger  *zap.Logger
	breaker *circuitBreaker
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant and verifies the server is healthy.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", ErrConnectionFailed, err)
	}

	healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: qdrant health check at %s:%d: %v",
			ErrConnectionFailed, config.Host, config.Port, err)
	}

	store := &QdrantStore{
		client:  client,
		config:  config,
		logger:  logger,
		breaker: newCircuitBreaker(config.CircuitBreakerThreshold, config.CircuitBreakerResetTimeout),
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Bool("tls", config.UseTLS),
		zap.Uint64("vector_size", config.VectorSize),
	)
	return store, nil
}

// retryOperation runs fn with exponential backoff on transient errors.
// The breaker short-circuits when the server has been failing hard.
func (s *QdrantStore) retryOperation(ctx context.Context, operation string, fn func() error) error {
	if !s.breaker.allow() {
		return fmt.Errorf("%w: circuit breaker open for %s", ErrConnectionFailed, operation)
	}

	var lastErr error
	backoff := s.config.RetryBackoff
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			s.breaker.recordSuccess()
			return nil
		}
		if !IsTransientError(lastErr) {
			break
		}
		s.logger.Warn("transient qdrant error, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	s.breaker.recordFailure()
	return lastErr
}

func (s *QdrantStore) collectionName(collection string) string {
	if collection == "" {
		return s.config.DefaultCollection
	}
	return collection
}

// pointID converts a document ID to a Qdrant point ID. Qdrant only
// accepts UUIDs or unsigned integers as point IDs, so non-UUID IDs are
// mapped deterministically via UUIDv5.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	derived := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	return qdrant.NewIDUUID(derived.String())
}

// Upsert inserts or replaces documents with their vectors.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document) ([]string, error) {
	name := s.collectionName(collection)
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	for i, doc := range docs {
		if uint64(len(doc.Vector)) != s.config.VectorSize {
			return nil, fmt.Errorf("%w: document %d has %d dimensions, store expects %d",
				ErrDimensionMismatch, i, len(doc.Vector), s.config.VectorSize)
		}
	}

	if err := s.ensureCollection(ctx, name); err != nil {
		return nil, err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.New().String()
			s.logger.Warn("auto-generated document ID, callers should provide explicit IDs",
				zap.String("generated_id", ids[i]),
				zap.Int("index", i),
			)
		}

		payload := map[string]*qdrant.Value{
			"id":      qdrant.NewValueString(ids[i]),
			"content": qdrant.NewValueString(doc.Content),
		}
		for k, v := range doc.Metadata {
			payload["meta_"+k] = qdrant.NewValueString(v)
		}

		points[i] = &qdrant.PointStruct{
			Id:      pointID(ids[i]),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: payload,
		}
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upserting %d points to %s: %w", len(points), name, err)
	}

	s.logger.Debug("upserted documents to qdrant",
		zap.String("collection", name),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Search returns the k most similar documents using the HNSW index.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error) {
	return s.search(ctx, collection, vector, k, false)
}

// ExactSearch bypasses the HNSW index and scans every point. Slower
// but exact, used as ground truth when measuring retrieval quality.
func (s *QdrantStore) ExactSearch(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error) {
	return s.search(ctx, collection, vector, k, true)
}

func (s *QdrantStore) search(ctx context.Context, collection string, vector []float32, k int, exact bool) ([]SearchResult, error) {
	name := s.collectionName(collection)
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if uint64(len(vector)) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	query := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if exact {
		query.Params = &qdrant.SearchParams{Exact: qdrant.PtrOf(true)}
	}

	var points []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "search", func() error {
		var err error
		points, err = s.client.Query(ctx, query)
		return err
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	results := make([]SearchResult, len(points))
	for i, point := range points {
		results[i] = SearchResult{
			ID:       point.GetPayload()["id"].GetStringValue(),
			Content:  point.GetPayload()["content"].GetStringValue(),
			Score:    point.GetScore(),
			Metadata: metadataFromPayload(point.GetPayload()),
		}
		if results[i].ID == "" {
			results[i].ID = point.GetId().GetUuid()
		}
	}

	s.logger.Debug("searched qdrant collection",
		zap.String("collection", name),
		zap.Int("k", k),
		zap.Bool("exact", exact),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func metadataFromPayload(payload map[string]*qdrant.Value) map[string]string {
	var metadata map[string]string
	for key, value := range payload {
		if !strings.HasPrefix(key, "meta_") {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[strings.TrimPrefix(key, "meta_")] = value.GetStringValue()
	}
	return metadata
}

// Delete removes documents by ID. Points are matched on the "id"
// payload field, which survives the UUID mapping applied at upsert.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	name := s.collectionName(collection)
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	selector := &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{
					{
						ConditionOneOf: &qdrant.Condition_Field{
							Field: &qdrant.FieldCondition{
								Key: "id",
								Match: &qdrant.Match{
									MatchValue: &qdrant.Match_Keywords{
										Keywords: &qdrant.RepeatedStrings{
											Strings: ids,
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Points:         selector,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting %d points from %s: %w", len(ids), name, err)
	}

	s.logger.Debug("deleted documents from qdrant",
		zap.String("collection", name),
		zap.Int("count", len(ids)),
	)
	return nil
}

// ensureCollection creates the collection if it does not exist yet.
func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.CreateCollection(ctx, name, int(s.config.VectorSize))
	if err != nil && err != ErrCollectionExists {
		return err
	}
	return nil
}

// CreateCollection creates a new collection with the configured
// distance metric.
func (s *QdrantStore) CreateCollection(ctx context.Context, collection string, vectorSize int) error {
	name := s.collectionName(collection)
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	size := uint64(vectorSize)
	if size == 0 {
		size = s.config.VectorSize
	}
	distance, err := distanceFromString(s.config.Distance)
	if err != nil {
		return err
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return ErrCollectionExists
	}

	err = s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     size,
				Distance: distance,
			}),
		})
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrCollectionExists
		}
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", name),
		zap.Uint64("vector_size", size),
		zap.String("distance", s.config.Distance),
	)
	return nil
}

// DeleteCollection drops a collection and all its points.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	name := s.collectionName(collection)
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	err := s.retryOperation(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, name)
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return ErrCollectionNotFound
		}
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	s.logger.Info("deleted qdrant collection", zap.String("collection", name))
	return nil
}

// CollectionExists reports whether a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	name := s.collectionName(collection)
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		_, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return exists, nil
}

// ListCollections returns all collection names.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := s.retryOperation(ctx, "list_collections", func() error {
		var err error
		names, err = s.client.ListCollections(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return names, nil
}

// GetCollectionInfo returns point count and vector size.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	name := s.collectionName(collection)
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var info *qdrant.CollectionInfo
	err := s.retryOperation(ctx, "collection_info", func() error {
		var err error
		info, err = s.client.GetCollectionInfo(ctx, name)
		return err
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("getting info for %s: %w", name, err)
	}

	return &CollectionInfo{
		Name:       name,
		PointCount: int(info.GetPointsCount()),
		VectorSize: int(s.config.VectorSize),
	}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("closing qdrant client: %w", err)
	}
	s.logger.Info("qdrant store closed")
	return nil
}

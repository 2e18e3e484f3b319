package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

const (
	defaultTEITimeout           = 60 * time.Second
	defaultTEIRequestsPerSecond = 16
	defaultTEIBurst             = 4
)

// TEIConfig holds configuration for remote text-embeddings-inference
// replicas.
type TEIConfig struct {
	// Model is the model name served by the replicas, used for
	// dimension detection and logging only.
	Model string

	// Endpoints maps device identifiers to replica base URLs, one
	// replica per accelerator (e.g. "cuda:0" -> "http://tei-0:8080").
	Endpoints map[string]string

	// APIKey is an optional bearer token sent with every request.
	APIKey string

	// RequestsPerSecond and Burst bound outbound traffic per replica.
	RequestsPerSecond float64
	Burst             int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// TEI generates embeddings over HTTP against one replica per device.
// An encode on a device without a configured replica fails with
// ErrUnknownDevice.
type TEI struct {
	model     string
	endpoints map[string]string
	limiters  map[string]*rate.Limiter
	client    *http.Client
	apiKey    string
	dimension int
	logger    *zap.Logger
}

var _ Provider = (*TEI)(nil)

// NewTEI creates the remote encoder.
func NewTEI(cfg TEIConfig, logger *zap.Logger) (*TEI, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: tei provider requires at least one endpoint", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultTEIRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultTEIBurst
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTEITimeout
	}

	endpoints := make(map[string]string, len(cfg.Endpoints))
	limiters := make(map[string]*rate.Limiter, len(cfg.Endpoints))
	for device, baseURL := range cfg.Endpoints {
		if baseURL == "" {
			return nil, fmt.Errorf("%w: empty endpoint for device %q", ErrInvalidConfig, device)
		}
		endpoints[device] = baseURL
		limiters[device] = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &TEI{
		model:     cfg.Model,
		endpoints: endpoints,
		limiters:  limiters,
		client:    &http.Client{Timeout: timeout},
		apiKey:    cfg.APIKey,
		dimension: detectDimension(cfg.Model),
		logger:    logger,
	}, nil
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// EncodeBatch embeds texts on the replica backing device, splitting
// the call into sub-batches of opts.BatchSize.
func (t *TEI) EncodeBatch(ctx context.Context, texts []string, device string, opts encode.Options) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	endpoint, ok := t.endpoints[device]
	if !ok {
		return nil, fmt.Errorf("%w: no tei endpoint configured for %q", ErrUnknownDevice, device)
	}
	limiter := t.limiters[device]
	opts = opts.WithDefaults()

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += opts.BatchSize {
		end := i + opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		vectors, err := t.embed(ctx, endpoint, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: replica returned %d vectors for %d texts", ErrEncodeFailed, len(out), len(texts))
	}
	return out, nil
}

func (t *TEI) embed(ctx context.Context, endpoint string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{
		Inputs:   texts,
		Truncate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEncodeFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return vectors, nil
}

// Dimension returns the embedding dimension for the configured model.
func (t *TEI) Dimension() int {
	return t.dimension
}

// Close releases idle HTTP connections.
func (t *TEI) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

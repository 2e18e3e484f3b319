package embedder

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEncodeFailed indicates the backend failed to produce embeddings.
	ErrEncodeFailed = errors.New("encode failed")

	// ErrUnknownDevice indicates a device identifier with no backing
	// replica. Device ids are never validated up front, so this is how
	// a typo in an explicit device list surfaces.
	ErrUnknownDevice = errors.New("unknown device")
)

// Provider is a closeable encoder with a known output dimension.
type Provider interface {
	encode.Encoder

	// Dimension returns the embedding dimension for the configured model.
	Dimension() int

	// Close releases backend resources.
	Close() error
}

// ProviderConfig selects and configures an encoder backend.
type ProviderConfig struct {
	// Provider is the backend type: "fastembed" (default) or "tei".
	Provider string

	// Model is the embedding model name.
	Model string

	// CacheDir is the model cache directory (fastembed only).
	CacheDir string

	// MaxLength is the maximum input sequence length (fastembed only;
	// TEI replicas truncate server-side).
	MaxLength int

	// Endpoints maps device identifiers to TEI replica base URLs.
	Endpoints map[string]string

	// APIKey is the optional bearer token for TEI replicas.
	APIKey string

	// RequestsPerSecond and Burst bound outbound TEI traffic per replica.
	RequestsPerSecond float64
	Burst             int
}

// NewProvider creates an encoder backend from configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbed(FastEmbedConfig{
			Model:     cfg.Model,
			CacheDir:  cfg.CacheDir,
			MaxLength: cfg.MaxLength,
		})
	case "tei":
		return NewTEI(TEIConfig{
			Model:             cfg.Model,
			Endpoints:         cfg.Endpoints,
			APIKey:            cfg.APIKey,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown encoder provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// knownModelDimensions maps model names to their embedding dimensions.
var knownModelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// detectDimension returns the embedding dimension for a model name,
// falling back to naming conventions for models outside the known set.
func detectDimension(model string) int {
	if dim, ok := knownModelDimensions[model]; ok {
		return dim
	}
	switch {
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	default:
		return 384
	}
}

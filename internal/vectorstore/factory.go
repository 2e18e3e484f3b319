package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/config"
)

// NewStore creates a Store from daemon configuration. The vector size
// comes from the encoder provider, not the config file, so the store
// always matches the model actually loaded.
func NewStore(cfg config.VectorStoreConfig, vectorSize int, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:              cfg.Chromem.Path,
			Compress:          cfg.Chromem.Compress,
			DefaultCollection: cfg.Chromem.Collection,
			VectorSize:        vectorSize,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:              cfg.Qdrant.Host,
			Port:              cfg.Qdrant.Port,
			DefaultCollection: cfg.Qdrant.Collection,
			VectorSize:        uint64(vectorSize),
			UseTLS:            cfg.Qdrant.UseTLS,
			APIKey:            cfg.Qdrant.APIKey.Value(),
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unknown provider %q (want chromem or qdrant)",
			ErrInvalidConfig, cfg.Provider)
	}
}

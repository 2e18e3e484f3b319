//go:build cgo

package embedder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

// FastEmbedConfig holds configuration for the local ONNX backend.
type FastEmbedConfig struct {
	// Model is the embedding model to use.
	// Supported: BAAI/bge-small-en-v1.5 (default), BAAI/bge-base-en-v1.5,
	// sentence-transformers/all-MiniLM-L6-v2, etc.
	Model string

	// CacheDir is the directory to cache model files.
	// Defaults to <user cache dir>/vectord/models.
	CacheDir string

	// MaxLength is the maximum input sequence length. Fixed at model
	// load; per-call options cannot raise it. Defaults to 512.
	MaxLength int
}

// FastEmbed generates embeddings with local ONNX models.
//
// The device identifier passed to EncodeBatch is accepted but not
// interpreted; placement is delegated to the ONNX runtime. The model
// is safe for concurrent use once warmed.
type FastEmbed struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	mu        sync.RWMutex

	warmOnce sync.Once
	warmErr  error
}

var (
	_ Provider      = (*FastEmbed)(nil)
	_ encode.Warmer = (*FastEmbed)(nil)
)

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	// Also accept the fastembed model names directly.
	"fast-bge-small-en-v1.5": fastembed.BGESmallENV15,
	"fast-bge-small-en":      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":  fastembed.BGEBaseENV15,
	"fast-bge-base-en":       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5": fastembed.BGESmallZH,
	"fast-all-MiniLM-L6-v2":  fastembed.AllMiniLML6V2,
}

// NewFastEmbed creates the local ONNX encoder, downloading model files
// on first use.
func NewFastEmbed(cfg FastEmbedConfig) (*FastEmbed, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = "BAAI/bge-small-en-v1.5"
	}

	model, ok := modelMapping[modelName]
	if !ok {
		model = fastembed.EmbeddingModel(modelName)
		if _, known := knownModelDimensions[modelName]; !known {
			return nil, fmt.Errorf("%w: unsupported model %q (supported: BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, sentence-transformers/all-MiniLM-L6-v2)", ErrInvalidConfig, modelName)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			cacheDir = filepath.Join(base, "vectord", "models")
		} else {
			cacheDir = "local_cache"
		}
	}

	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = encode.DefaultMaxLength
	}

	// Download progress bars belong to the CLI, not a daemon log.
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbed{
		model:     flagEmbed,
		modelName: modelName,
		dimension: detectDimension(modelName),
	}, nil
}

// EncodeBatch generates one embedding per text.
func (f *FastEmbed) EncodeBatch(ctx context.Context, texts []string, _ string, opts encode.Options) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	opts = opts.WithDefaults()

	f.mu.RLock()
	defer f.mu.RUnlock()

	vectors, err := f.model.Embed(texts, opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return vectors, nil
}

// Warm runs a canary embedding so the model is faulted in exactly once
// before concurrent callers arrive.
func (f *FastEmbed) Warm(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	f.warmOnce.Do(func() {
		f.mu.RLock()
		defer f.mu.RUnlock()
		if _, err := f.model.Embed([]string{"warmup"}, 1); err != nil {
			f.warmErr = fmt.Errorf("%w: warm: %v", ErrEncodeFailed, err)
		}
	})
	return f.warmErr
}

// Dimension returns the embedding dimension for the configured model.
func (f *FastEmbed) Dimension() int {
	return f.dimension
}

// Close releases the ONNX session.
func (f *FastEmbed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.model != nil {
		return f.model.Destroy()
	}
	return nil
}

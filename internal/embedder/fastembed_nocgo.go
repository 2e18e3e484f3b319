//go:build !cgo

package embedder

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

// ErrFastEmbedNotAvailable is returned when the binary was built
// without cgo. Use the TEI provider instead.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use TEI provider instead)")

// FastEmbedConfig holds configuration for the local ONNX backend.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbed is a stub for non-cgo builds.
type FastEmbed struct{}

var _ Provider = (*FastEmbed)(nil)

// NewFastEmbed returns an error when cgo is not available.
func NewFastEmbed(_ FastEmbedConfig) (*FastEmbed, error) {
	return nil, ErrFastEmbedNotAvailable
}

// EncodeBatch returns an error when cgo is not available.
func (f *FastEmbed) EncodeBatch(_ context.Context, _ []string, _ string, _ encode.Options) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Dimension returns 0 when cgo is not available.
func (f *FastEmbed) Dimension() int {
	return 0
}

// Close is a no-op when cgo is not available.
func (f *FastEmbed) Close() error {
	return nil
}

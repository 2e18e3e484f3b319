//go:build cgo

package embedder

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

func TestNewFastEmbed_UnsupportedModel(t *testing.T) {
	// Model validation happens before any download.
	_, err := NewFastEmbed(FastEmbedConfig{Model: "made-up/model"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func skipWithoutONNX(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping fastembed test in short mode")
	}
	if _, err := os.Stat("/usr/lib/libonnxruntime.so"); os.IsNotExist(err) {
		if os.Getenv("ONNX_PATH") == "" {
			t.Skip("ONNX runtime not available")
		}
	}
}

func TestFastEmbed_EncodeBatch(t *testing.T) {
	skipWithoutONNX(t)

	fe, err := NewFastEmbed(FastEmbedConfig{
		Model: "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, fe.Close()) }()

	assert.Equal(t, 384, fe.Dimension())
	require.NoError(t, fe.Warm(context.Background()))

	out, err := fe.EncodeBatch(context.Background(), []string{"hello world", "goodbye"}, "cpu", encode.Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Len(t, out[0], 384)
	assert.Len(t, out[1], 384)
}

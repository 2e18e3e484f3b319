// Package encode defines the boundary between the orchestration layer
// and the embedding backends.
//
// The worker pool and the single-target fast path both drive encoders
// through the Encoder interface and never look inside the texts or the
// options they forward.
package encode

import (
	"context"
)

// Encoder turns a batch of texts into one embedding vector per text on
// a named device.
//
// A successful result has exactly len(texts) rows. Implementations must
// be safe for concurrent use from independent workers once Warm (if
// implemented) has completed; the orchestrator shares one Encoder
// across all workers and never mutates it after pool start.
type Encoder interface {
	EncodeBatch(ctx context.Context, texts []string, device string, opts Options) ([][]float32, error)
}

// Warmer is implemented by encoders that need a one-time preparation
// step before concurrent use, such as faulting model parameters into
// shared host memory. The pool invokes Warm once, before any worker
// starts; a failure aborts pool start.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Options is the opaque per-dispatch options bag, forwarded verbatim to
// the encoder with every chunk.
type Options struct {
	// BatchSize is the encoder-internal batch size. Zero means the
	// default.
	BatchSize int
	// MaxLength is the maximum input sequence length. Zero means the
	// default.
	MaxLength int
}

// Encoder-internal defaults applied by WithDefaults.
const (
	DefaultBatchSize = 256
	DefaultMaxLength = 512
)

// WithDefaults fills zero fields with the standard defaults.
func (o Options) WithDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	return o
}

// Func adapts a plain function to the Encoder interface.
type Func func(ctx context.Context, texts []string, device string, opts Options) ([][]float32, error)

// EncodeBatch calls f.
func (f Func) EncodeBatch(ctx context.Context, texts []string, device string, opts Options) ([][]float32, error) {
	return f(ctx, texts, device, opts)
}

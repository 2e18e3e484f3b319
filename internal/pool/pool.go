// Package pool runs one encode worker per target device and spreads
// batches across them.
//
// A Pool owns two shared channels: every worker pulls chunks from the
// same input channel and pushes tagged results to the same output
// channel, so faster devices naturally take more work. Dispatch splits
// a batch into contiguous chunks, feeds them in, collects exactly as
// many results as it produced chunks, and reassembles them in input
// order. Stop closes the input channel, which each worker observes as
// end-of-work, and waits for all of them to exit.
//
// Results are tagged with a per-dispatch session ID so that a dispatch
// aborted mid-flight (context cancelled, worker error) cannot leak its
// stragglers into the next dispatch on the same pool.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

// chunk is one contiguous slice of a dispatched batch.
type chunk struct {
	// ctx is the dispatch session context. Workers pass it to the
	// encoder so aborting a dispatch cancels its in-flight encodes.
	ctx     context.Context
	session uuid.UUID
	seq     int
	texts   []string
	opts    encode.Options
}

// result is a worker's answer for one chunk. Exactly one of vectors
// or err is meaningful.
type result struct {
	session uuid.UUID
	seq     int
	device  string
	vectors [][]float32
	err     error
}

// Pool is a fixed set of encode workers, one per target device.
// Dispatch and Stop are safe for concurrent use; dispatches are
// serialized so results cannot interleave across callers.
type Pool struct {
	encoder encode.Encoder
	devices []string
	logger  *zap.Logger
	metrics *Metrics

	input  chan chunk
	output chan result
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures a Pool at start.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the pool metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) {
		if m != nil {
			p.metrics = m
		}
	}
}

// Start spawns one worker per device and returns a running pool.
//
// If the encoder implements encode.Warmer it is warmed exactly once,
// before any worker exists, so per-process model state is shared
// rather than loaded once per worker. A warm failure aborts the start
// with nothing to clean up.
func Start(ctx context.Context, enc encode.Encoder, devices []string, opts ...Option) (*Pool, error) {
	if enc == nil {
		return nil, fmt.Errorf("%w: pool started without an encoder", ErrEncoderNotReady)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: pool started with an empty device list", ErrNoDevices)
	}

	p := &Pool{
		encoder: enc,
		devices: append([]string(nil), devices...),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(p.logger)
	}

	if w, ok := enc.(encode.Warmer); ok {
		if err := w.Warm(ctx); err != nil {
			return nil, fmt.Errorf("warm encoder: %w", err)
		}
	}

	p.input = make(chan chunk, len(p.devices))
	p.output = make(chan result, len(p.devices))
	for _, device := range p.devices {
		p.wg.Add(1)
		go p.worker(device)
	}

	p.logger.Debug("pool started",
		zap.Int("workers", len(p.devices)),
		zap.Strings("devices", p.devices))
	return p, nil
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return len(p.devices)
}

// Devices returns a copy of the pool's target devices.
func (p *Pool) Devices() []string {
	return append([]string(nil), p.devices...)
}

// worker pulls chunks until the input channel is closed. Every chunk
// received produces exactly one result, error or not, so collectors
// can count instead of timing out.
func (p *Pool) worker(device string) {
	defer p.wg.Done()

	log := p.logger.With(zap.String("device", device))
	log.Debug("worker started")

	for c := range p.input {
		start := time.Now()
		vectors, err := p.encodeChunk(c, device)
		p.metrics.RecordChunk(c.ctx, device, time.Since(start), len(c.texts), err)
		if err != nil {
			log.Warn("chunk encode failed",
				zap.Int("seq", c.seq),
				zap.Int("items", len(c.texts)),
				zap.Error(err))
		}
		p.output <- result{
			session: c.session,
			seq:     c.seq,
			device:  device,
			vectors: vectors,
			err:     err,
		}
	}

	log.Debug("worker exited")
}

// encodeChunk runs one chunk through the encoder, converting panics
// into errors so a misbehaving encoder cannot kill its worker.
func (p *Pool) encodeChunk(c chunk, device string) (vectors [][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encoder panic: %v", r)
		}
	}()
	return p.encoder.EncodeBatch(c.ctx, c.texts, device, c.opts)
}

// Stop closes the input channel and waits for every worker to finish
// its current chunk and exit. Leftover results from aborted dispatches
// are drained so no worker blocks on its final send. Stopping an
// already stopped pool returns ErrPoolClosed.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("%w: stop called twice", ErrPoolClosed)
	}
	p.closed = true

	close(p.input)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-p.output:
			// Straggler from an aborted dispatch.
		case <-done:
			close(p.output)
			p.logger.Debug("pool stopped")
			return nil
		}
	}
}

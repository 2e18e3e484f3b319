package embedder

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/devices"
	"github.com/fyrsmithlabs/vectord/internal/encode"
	"github.com/fyrsmithlabs/vectord/internal/pool"
)

// Config holds embedder service configuration.
type Config struct {
	// Targets is the explicit device list. Empty means probe the host
	// for accelerators and fall back to cpu.
	Targets []string

	// Model is the model name, used for logging and metrics only.
	Model string

	// Options are the default encode options applied when a caller
	// leaves fields zero.
	Options encode.Options

	// QueryInstruction is prepended to every query before encoding.
	// Empty disables it.
	QueryInstruction string

	// QueryInstructionFormat combines instruction and query ("%s%s"
	// when empty).
	QueryInstructionFormat string

	// PassageInstruction is prepended to every corpus passage.
	PassageInstruction string

	// PassageInstructionFormat combines instruction and passage.
	PassageInstructionFormat string
}

// Service encodes batches of text on the resolved target devices.
//
// With exactly one target it calls the encoder directly and returns
// its result unmodified. With several it spins up a worker pool for
// the call, dispatches, and tears the pool down again.
type Service struct {
	cfg     Config
	encoder encode.Encoder
	targets []string
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics

	resolver *devices.Resolver
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResolver overrides the device resolver used at construction.
func WithResolver(r *devices.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// NewService creates an embedder service and resolves its target
// devices once, up front.
func NewService(cfg Config, enc encode.Encoder, opts ...Option) (*Service, error) {
	if enc == nil {
		return nil, fmt.Errorf("%w: embedder service requires an encoder", pool.ErrEncoderNotReady)
	}

	s := &Service{
		cfg:     cfg,
		encoder: enc,
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.resolver == nil {
		s.resolver = devices.NewResolver(nil, s.logger)
	}
	s.metrics = NewMetrics(s.logger)

	s.targets = s.resolver.Resolve(cfg.Targets)
	s.logger.Info("embedder ready",
		zap.String("model", cfg.Model),
		zap.Strings("devices", s.targets))
	return s, nil
}

// Targets returns a copy of the resolved target devices.
func (s *Service) Targets() []string {
	return append([]string(nil), s.targets...)
}

// Warm faults encoder state in before traffic arrives. Safe to call
// more than once.
func (s *Service) Warm(ctx context.Context) error {
	if w, ok := s.encoder.(encode.Warmer); ok {
		return w.Warm(ctx)
	}
	return nil
}

// Encode embeds texts as-is, one vector per text, in input order.
func (s *Service) Encode(ctx context.Context, texts []string, opts encode.Options) ([][]float32, error) {
	return s.encode(ctx, texts, opts, "encode", nil)
}

// EncodeWithProgress is Encode with a per-chunk progress callback. On
// the single-target path the callback fires once.
func (s *Service) EncodeWithProgress(ctx context.Context, texts []string, opts encode.Options, progress pool.Progress) ([][]float32, error) {
	return s.encode(ctx, texts, opts, "encode", progress)
}

// EncodeQueries embeds queries, applying the configured query
// instruction first.
func (s *Service) EncodeQueries(ctx context.Context, queries []string, opts encode.Options) ([][]float32, error) {
	return s.EncodeQueriesWithProgress(ctx, queries, opts, nil)
}

// EncodeQueriesWithProgress is EncodeQueries with a per-chunk progress
// callback.
func (s *Service) EncodeQueriesWithProgress(ctx context.Context, queries []string, opts encode.Options, progress pool.Progress) ([][]float32, error) {
	wrapped := applyInstruction(s.cfg.QueryInstructionFormat, s.cfg.QueryInstruction, queries)
	return s.encode(ctx, wrapped, opts, "encode_queries", progress)
}

// EncodeCorpus embeds corpus passages, applying the configured passage
// instruction first.
func (s *Service) EncodeCorpus(ctx context.Context, passages []string, opts encode.Options) ([][]float32, error) {
	return s.EncodeCorpusWithProgress(ctx, passages, opts, nil)
}

// EncodeCorpusWithProgress is EncodeCorpus with a per-chunk progress
// callback.
func (s *Service) EncodeCorpusWithProgress(ctx context.Context, passages []string, opts encode.Options, progress pool.Progress) ([][]float32, error) {
	wrapped := applyInstruction(s.cfg.PassageInstructionFormat, s.cfg.PassageInstruction, passages)
	return s.encode(ctx, wrapped, opts, "encode_corpus", progress)
}

func (s *Service) encode(ctx context.Context, texts []string, opts encode.Options, operation string, progress pool.Progress) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	opts = s.effectiveOptions(opts)

	path := "pool"
	if len(s.targets) == 1 {
		path = "single"
	}

	ctx, span := s.tracer.Start(ctx, "embedder.encode", trace.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("path", path),
		attribute.Int("texts", len(texts)),
	))
	defer span.End()

	start := time.Now()
	var encErr error
	defer func() {
		if encErr != nil {
			span.RecordError(encErr)
		}
		s.metrics.RecordEncode(ctx, s.cfg.Model, operation, path, time.Since(start), len(texts), encErr)
	}()

	if len(s.targets) == 1 {
		vectors, err := s.encoder.EncodeBatch(ctx, texts, s.targets[0], opts)
		if err != nil {
			encErr = fmt.Errorf("encode on %s: %w", s.targets[0], err)
			return nil, encErr
		}
		if progress != nil {
			progress(1, 1)
		}
		return vectors, nil
	}

	p, err := pool.Start(ctx, s.encoder, s.targets, pool.WithLogger(s.logger))
	if err != nil {
		encErr = fmt.Errorf("start pool: %w", err)
		return nil, encErr
	}
	defer func() {
		if stopErr := p.Stop(); stopErr != nil {
			s.logger.Warn("stop pool", zap.Error(stopErr))
		}
	}()

	vectors, err := p.DispatchWithProgress(ctx, texts, opts, progress)
	if err != nil {
		encErr = err
		return nil, err
	}
	return vectors, nil
}

// effectiveOptions layers caller options over service defaults over
// package defaults.
func (s *Service) effectiveOptions(opts encode.Options) encode.Options {
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.cfg.Options.BatchSize
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = s.cfg.Options.MaxLength
	}
	return opts.WithDefaults()
}

package pool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord/internal/pool"

// Metrics records pool dispatch and worker activity via OpenTelemetry.
type Metrics struct {
	meter  metric.Meter
	logger *zap.Logger

	dispatchDuration metric.Float64Histogram
	dispatchChunks   metric.Int64Histogram
	dispatchErrors   metric.Int64Counter
	chunkDuration    metric.Float64Histogram
	chunkItems       metric.Int64Histogram
	workerFailures   metric.Int64Counter
}

// NewMetrics creates pool metrics using the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.dispatchDuration, err = m.meter.Float64Histogram(
		"vectord.pool.dispatch_duration_seconds",
		metric.WithDescription("End-to-end duration of a pool dispatch"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120),
	)
	if err != nil {
		m.logger.Warn("failed to create dispatch duration histogram", zap.Error(err))
	}

	m.dispatchChunks, err = m.meter.Int64Histogram(
		"vectord.pool.dispatch_chunks",
		metric.WithDescription("Number of chunks a dispatch was split into"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32, 64),
	)
	if err != nil {
		m.logger.Warn("failed to create dispatch chunks histogram", zap.Error(err))
	}

	m.dispatchErrors, err = m.meter.Int64Counter(
		"vectord.pool.dispatch_errors_total",
		metric.WithDescription("Total number of failed dispatches"),
	)
	if err != nil {
		m.logger.Warn("failed to create dispatch errors counter", zap.Error(err))
	}

	m.chunkDuration, err = m.meter.Float64Histogram(
		"vectord.pool.chunk_duration_seconds",
		metric.WithDescription("Duration of a single chunk encode on a worker"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		m.logger.Warn("failed to create chunk duration histogram", zap.Error(err))
	}

	m.chunkItems, err = m.meter.Int64Histogram(
		"vectord.pool.chunk_items",
		metric.WithDescription("Number of texts in a single chunk"),
		metric.WithExplicitBucketBoundaries(1, 8, 32, 64, 128, 256, 512, 1024),
	)
	if err != nil {
		m.logger.Warn("failed to create chunk items histogram", zap.Error(err))
	}

	m.workerFailures, err = m.meter.Int64Counter(
		"vectord.pool.worker_failures_total",
		metric.WithDescription("Total number of chunk encode failures"),
	)
	if err != nil {
		m.logger.Warn("failed to create worker failures counter", zap.Error(err))
	}
}

// RecordDispatch records the outcome of one dispatch.
func (m *Metrics) RecordDispatch(ctx context.Context, duration time.Duration, chunks int, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))

	if m.dispatchDuration != nil {
		m.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.dispatchChunks != nil {
		m.dispatchChunks.Record(ctx, int64(chunks), attrs)
	}
	if err != nil && m.dispatchErrors != nil {
		m.dispatchErrors.Add(ctx, 1)
	}
}

// RecordChunk records a single chunk encode on a worker.
func (m *Metrics) RecordChunk(ctx context.Context, device string, duration time.Duration, items int, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("device", device))

	if m.chunkDuration != nil {
		m.chunkDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.chunkItems != nil {
		m.chunkItems.Record(ctx, int64(items), attrs)
	}
	if err != nil && m.workerFailures != nil {
		m.workerFailures.Add(ctx, 1, attrs)
	}
}

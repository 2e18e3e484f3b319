package embedder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord/internal/embedder"

// Metrics records embedding activity via OpenTelemetry.
type Metrics struct {
	meter  metric.Meter
	logger *zap.Logger

	encodeDuration metric.Float64Histogram
	batchSize      metric.Int64Histogram
	errors         metric.Int64Counter
}

// NewMetrics creates embedder metrics using the global meter provider.
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

	m.encodeDuration, err = m.meter.Float64Histogram(
		"vectord.embedder.encode_duration_seconds",
		metric.WithDescription("Duration of embedding generation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120),
	)
	if err != nil {
		m.logger.Warn("failed to create encode duration histogram", zap.Error(err))
	}

	m.batchSize, err = m.meter.Int64Histogram(
		"vectord.embedder.batch_size",
		metric.WithDescription("Number of texts per encode call"),
		metric.WithExplicitBucketBoundaries(1, 8, 32, 128, 512, 2048, 8192),
	)
	if err != nil {
		m.logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"vectord.embedder.errors_total",
		metric.WithDescription("Total number of failed encode calls"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordEncode records one encode call.
func (m *Metrics) RecordEncode(ctx context.Context, model, operation, path string, duration time.Duration, batchSize int, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
		attribute.String("path", path),
		attribute.String("status", status),
	)

	if m.encodeDuration != nil {
		m.encodeDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batchSize), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("operation", operation),
		))
	}
}

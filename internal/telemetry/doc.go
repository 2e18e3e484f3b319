// Package telemetry provides OpenTelemetry instrumentation for vectord.
//
// # Overview
//
// This package implements distributed tracing and metrics collection using
// the OpenTelemetry Go SDK. Telemetry data is exported to an OTEL Collector
// over OTLP (gRPC by default, HTTP/protobuf optional).
//
// # Usage
//
// Create telemetry instance:
//
//	cfg := telemetry.NewDefaultConfig()
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
// Use tracer and meter:
//
//	tracer := tel.Tracer("vectord.pool")
//	ctx, span := tracer.Start(ctx, "pool.Dispatch")
//	defer span.End()
//
//	meter := tel.Meter("vectord.pool")
//	counter, _ := meter.Int64Counter("pool.chunks.dispatched")
//	counter.Add(ctx, 1)
//
// # Error Handling
//
// Telemetry failures do not crash the daemon. If a provider cannot be
// initialized, the instance degrades gracefully to no-op providers.
//
// # Testing
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	_, span := tracer.Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry

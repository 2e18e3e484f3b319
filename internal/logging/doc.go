// Package logging provides structured logging for vectord.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (trace_id, request.id)
//   - Encoder-level secret redaction
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithRequestID(ctx, "req_123")
//	logger.Info(ctx, "batch encoded", zap.Int("rows", n))
//
// Workers typically carry a child logger instead of context fields:
//
//	wlog := logger.Named("worker").With(zap.String("device", dev))
//
// # Secret Redaction
//
// Secrets are redacted at two layers:
//  1. Domain primitives (config.Secret type)
//  2. Encoder-level field name and pattern filtering
//
// Use helpers for manual redaction:
//
//	logger.Info(ctx, "auth configured",
//	    logging.RedactedString("authorization", authHeader))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
package logging

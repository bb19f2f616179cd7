// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// The package wraps Zap with:
//   - a custom Trace level (-2, below Debug)
//   - dual output (stdout + OpenTelemetry log bridge)
//   - automatic context fields (trace_id, span_id, session.id, request.id)
//   - secret redaction at the encoder (authorization headers, bearer tokens)
//   - level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	logger.Info(ctx, "relay complete", zap.Int("status", 200))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "upstream non-success", zap.Int("status", 503))
//	tl.AssertLogged(t, zapcore.WarnLevel, "non-success")
//	tl.AssertField(t, "non-success", "status", int64(503))
package logging

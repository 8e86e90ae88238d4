// Package logging builds the process logger.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON or text output
//   - A level that can be changed at runtime (config reload)
//   - Context fields (request_id, bank_id, operation) on *Context calls
//   - Redaction of secret attributes
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "recall finished", "duration_ms", 184)
//	// {"level":"INFO","msg":"recall finished","duration_ms":184,"request_id":"req-123",...}
//
//	_ = logger.SetLevel("debug")
//
// Components take a *slog.Logger, usually from Component:
//
//	inst, err := metrics.NewInstrumentation(reg, metrics.WithLogger(logger.Component("metrics")))
package logging

package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the process-wide default slog handler.
func Setup(level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithBatchID stores the current batch identifier in the context so logs
// emitted while processing the batch can be correlated.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, contextKey{}, batchID)
}

// FromContext returns the default logger annotated with the batch ID from
// the context, if any.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if batchID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("batch_id", batchID)
	}
	return logger
}

// WithComponent returns the default logger annotated with a component name.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

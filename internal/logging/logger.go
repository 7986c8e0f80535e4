package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithDataset returns a logger scoped to one dataset acquisition.
// Use this for stage transitions inside the orchestrator.
func WithDataset(dataset, cacheKey string) *slog.Logger {
	return slog.With(
		"dataset", dataset,
		"cache_key", cacheKey,
	)
}

// WithUpstream returns a logger scoped to an upstream service call.
func WithUpstream(logger *slog.Logger, service string) *slog.Logger {
	return logger.With("upstream", service)
}

package docluster

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/docluster/model"
)

// Logger wraps slog.Logger with docluster-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithRun tags every record with a fresh run ID.
func (l *Logger) WithRun() *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", uuid.NewString()),
	}
}

// WithBatch adds a batch index field to the logger.
func (l *Logger) WithBatch(index int) *Logger {
	return &Logger{
		Logger: l.Logger.With("batch", index),
	}
}

// LogRun logs the end of a run.
func (l *Logger) LogRun(ctx context.Context, docs, clusters int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "run failed",
			"documents", docs,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "run completed",
		"documents", docs,
		"clusters", clusters,
		"duration", duration,
	)
}

// LogStrategy logs the selector's decision and the prediction made for it.
func (l *Logger) LogStrategy(ctx context.Context, c model.DataCharacteristics, s model.Strategy, p model.Prediction) {
	l.DebugContext(ctx, "strategy selected",
		"size", c.Size,
		"dimensionality", c.Dimensionality,
		"noise_level", c.NoiseLevel,
		"shape", c.ClusterShape.String(),
		"distribution", c.Distribution.String(),
		"complexity", c.DomainComplexity.String(),
		"primary", s.Primary.String(),
		"fallbacks", s.Fallbacks,
		"k", s.Params.K,
		"predicted_duration", p.Duration,
		"predicted_memory", p.MemoryBytes,
	)
}

// LogAlgorithm logs one algorithm invocation.
func (l *Logger) LogAlgorithm(ctx context.Context, alg model.Algorithm, clusters int, duration time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "algorithm failed",
			"algorithm", alg.String(),
			"duration", duration,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "algorithm completed",
		"algorithm", alg.String(),
		"clusters", clusters,
		"duration", duration,
	)
}

// LogFallback logs a switch to the next algorithm.
func (l *Logger) LogFallback(ctx context.Context, from, to model.Algorithm) {
	l.WarnContext(ctx, "falling back",
		"from", from.String(),
		"to", to.String(),
	)
}

// LogDegraded logs that every algorithm failed.
func (l *Logger) LogDegraded(ctx context.Context, docs int) {
	l.ErrorContext(ctx, "all algorithms failed, returning a single cluster",
		"documents", docs,
	)
}

// LogFusion logs a fusion step.
func (l *Logger) LogFusion(ctx context.Context, method string, inputs, clusters int, err error) {
	if err != nil {
		l.WarnContext(ctx, "fusion failed",
			"method", method,
			"inputs", inputs,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "fusion completed",
		"method", method,
		"inputs", inputs,
		"clusters", clusters,
	)
}

// LogBatch logs one batch of a batched run.
func (l *Logger) LogBatch(ctx context.Context, index, docs int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "batch failed",
			"batch", index,
			"documents", docs,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "batch completed",
		"batch", index,
		"documents", docs,
		"duration", duration,
	)
}

// LogCache logs a result cache access. Cache errors never fail a run.
func (l *Logger) LogCache(ctx context.Context, op string, key model.CacheKey, hit bool, err error) {
	if err != nil {
		l.WarnContext(ctx, "result cache error",
			"op", op,
			"fingerprint", key.Fingerprint,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "result cache",
		"op", op,
		"fingerprint", key.Fingerprint,
		"target_k", key.TargetK,
		"hit", hit,
	)
}

package vecsearch

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with search-specific helpers and consistent
// field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler to stderr at info level is used.
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

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// Slog returns the underlying *slog.Logger for lower-level packages.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// LogAdd logs a single text add.
func (l *Logger) LogAdd(ctx context.Context, id uint32, err error) {
	if err != nil {
		l.WarnContext(ctx, "add failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"id", id,
		)
	}
}

// LogBatchAdd logs a batch add.
func (l *Logger) LogBatchAdd(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch add completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch add completed",
			"count", count,
		)
	}
}

// LogSearch logs a search.
func (l *Logger) LogSearch(ctx context.Context, clusterTopn, topn, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"cluster_topn", clusterTopn,
			"topn", topn,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"cluster_topn", clusterTopn,
			"topn", topn,
			"results", resultsFound,
		)
	}
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, count int) {
	l.DebugContext(ctx, "delete completed",
		"count", count,
	)
}

// LogStore logs a store or load of dir.
func (l *Logger) LogStore(ctx context.Context, op, dir string, documents int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"dir", dir,
			"documents", documents,
		)
	}
}

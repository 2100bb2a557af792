package usearch

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with consistent field names for index operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger over handler. A nil handler logs text to stderr at Info.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// With returns a Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogAdd logs a single insertion.
func (l *Logger) LogAdd(ctx context.Context, key Key, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed", "key", key, "error", err)
		return
	}
	l.DebugContext(ctx, "add completed", "key", key)
}

// LogBatchAdd logs the outcome of AddBatch.
func (l *Logger) LogBatchAdd(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch add completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
		return
	}
	l.InfoContext(ctx, "batch add completed", "count", count)
}

// LogSearch logs one query or a batch of them.
func (l *Logger) LogSearch(ctx context.Context, queries, count int, stats SearchStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "queries", queries, "count", count, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed",
		"queries", queries,
		"count", count,
		"visited", stats.VisitedMembers,
		"computed", stats.ComputedDistances,
	)
}

// LogRemove logs a removal.
func (l *Logger) LogRemove(ctx context.Context, keys, removed int, compact bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed", "keys", keys, "compact", compact, "error", err)
		return
	}
	l.DebugContext(ctx, "remove completed", "keys", keys, "removed", removed, "compact", compact)
}

// LogSave logs a snapshot write.
func (l *Logger) LogSave(ctx context.Context, target string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed", "target", target, "error", err)
		return
	}
	l.InfoContext(ctx, "index saved", "target", target, "bytes", bytes)
}

// LogLoad logs a snapshot load or view.
func (l *Logger) LogLoad(ctx context.Context, source string, count int, view bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "source", source, "view", view, "error", err)
		return
	}
	l.InfoContext(ctx, "index loaded", "source", source, "count", count, "view", view)
}

// LogJoin logs a semantic join.
func (l *Logger) LogJoin(ctx context.Context, left, right, matched int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "join failed", "left", left, "right", right, "error", err)
		return
	}
	l.InfoContext(ctx, "join completed", "left", left, "right", right, "matched", matched)
}

// LogCluster logs a clustering run.
func (l *Logger) LogCluster(ctx context.Context, members, centroids int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cluster failed", "members", members, "error", err)
		return
	}
	l.InfoContext(ctx, "cluster completed", "members", members, "centroids", centroids)
}

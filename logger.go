package quadtree

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with field names shared by every index operation.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at info level is used.
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

// NewJSONLogger creates a Logger that writes JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable lines to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithHandle adds a handle field.
func (l *Logger) WithHandle(h Handle) *Logger {
	return &Logger{
		Logger: l.Logger.With("handle", uint64(h)),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(h Handle, pos Point, rerouted int, err error) {
	if err != nil {
		l.Error("insert failed",
			"pos", pos.String(),
			"error", err,
		)
		return
	}
	l.Debug("insert completed",
		"handle", uint64(h),
		"pos", pos.String(),
		"rerouted", rerouted,
	)
}

// LogSplit logs a leaf being subdivided.
func (l *Logger) LogSplit(depth int, b BoundingBox, orphans int) {
	l.Debug("leaf split",
		"depth", depth,
		"region", b.String(),
		"orphans", orphans,
	)
}

// LogSearch logs a radius search.
func (l *Logger) LogSearch(pos Point, r float64, candidates, matches int) {
	l.Debug("search completed",
		"pos", pos.String(),
		"radius", r,
		"candidates", candidates,
		"matches", matches,
	)
}

// LogRemove logs a removal. A miss is not an error.
func (l *Logger) LogRemove(h Handle, pos Point, found bool) {
	l.WithHandle(h).Debug("remove completed",
		"pos", pos.String(),
		"found", found,
	)
}

// LogReinsert logs the relocation of a moved item.
func (l *Logger) LogReinsert(h Handle, from, to Point, err error) {
	if err != nil {
		l.WithHandle(h).Error("reinsert failed",
			"from", from.String(),
			"to", to.String(),
			"error", err,
		)
		return
	}
	l.WithHandle(h).Debug("reinsert completed",
		"from", from.String(),
		"to", to.String(),
	)
}

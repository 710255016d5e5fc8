package internal

import (
	"context"
	"log/slog"
)

// LevelTrace sits below slog.LevelDebug and is used for per-segment traces
// (sequence/ack/window dumps) that are too noisy for ordinary debug logging.
const LevelTrace slog.Level = slog.LevelDebug - 4

// LogEnabled reports whether l has a handler that would emit at lvl,
// without allocating a context value on every call site.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs forwards to l.LogAttrs, tolerating a nil logger so callers don't
// need to guard every call.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

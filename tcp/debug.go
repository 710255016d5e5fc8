package tcp

import (
	"log/slog"

	"github.com/vincepr/rs-tcp/internal"
)

// logger is the embeddable slog wrapper every Connection carries. It
// tolerates a nil *slog.Logger so constructing a Connection without
// Options.Log never requires a guard at the call site.
type logger struct {
	log *slog.Logger
}

func (l *logger) logenabled(lvl slog.Level) bool {
	return internal.LogEnabled(l.log, lvl)
}

func (l *logger) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, lvl, msg, attrs...)
}

func (l *logger) debug(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelDebug, msg, attrs...)
}

func (l *logger) trace(msg string, attrs ...slog.Attr) {
	l.logattrs(internal.LevelTrace, msg, attrs...)
}

func (l *logger) logerr(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelError, msg, attrs...)
}

func (c *Connection) traceSnd(msg string) {
	c.trace(msg,
		slog.String("state", c.state.String()),
		slog.Uint64("snd.nxt", uint64(c.snd.NXT)),
		slog.Uint64("snd.una", uint64(c.snd.UNA)),
		slog.Uint64("snd.wnd", uint64(c.snd.WND)),
	)
}

func (c *Connection) traceRcv(msg string) {
	c.trace(msg,
		slog.String("state", c.state.String()),
		slog.Uint64("rcv.nxt", uint64(c.rcv.NXT)),
		slog.Uint64("rcv.wnd", uint64(c.rcv.WND)),
	)
}

func (c *Connection) traceSeg(msg string, seg Segment) {
	if c.logenabled(internal.LevelTrace) {
		c.trace(msg,
			slog.Uint64("seg.seq", uint64(seg.SEQ)),
			slog.Uint64("seg.ack", uint64(seg.ACK)),
			slog.Uint64("seg.wnd", uint64(seg.WND)),
			slog.String("seg.flags", seg.Flags.String()),
			slog.Uint64("seg.data", uint64(seg.DATALEN)),
		)
	}
}

package dispatch

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/vincepr/rs-tcp"
	"github.com/vincepr/rs-tcp/internal"
	"github.com/vincepr/rs-tcp/ipv4"
	"github.com/vincepr/rs-tcp/tcp"
)

// Tunnel is the blocking, synchronous device the Loop reads inbound
// datagrams from and writes outbound ones to. *internal.Tun satisfies it.
type Tunnel interface {
	Recv(buf []byte) (int, error)
	Send(datagram []byte) error
}

// entry pairs a tracked Connection with the correlation ID assigned to it
// at accept. The ID is attached to the Loop's debug log lines for the flow;
// error log lines and metrics do not carry it.
type entry struct {
	id   uuid.UUID
	conn *tcp.Connection
}

// Loop is the single-threaded, cooperative dispatch loop (spec §4.E /
// §5): it exclusively owns tun and table, and nothing in this package runs
// concurrently with it.
type Loop struct {
	tun     Tunnel
	table   map[Quad]*entry
	opts    Options
	metrics *Metrics
	buf     []byte
	// hasPacketInfo strips the 4-byte flags+protocol prefix some TUN
	// framings prepend (e.g. a device opened without IFF_NO_PI) before
	// the first byte is assumed to be the IPv4 version/IHL octet.
	hasPacketInfo bool
}

// Options configures the Connections a Loop's accept step creates.
type Options struct {
	ConnOptions   tcp.Options
	HasPacketInfo bool
	Log           *slog.Logger
}

// NewLoop constructs a Loop reading/writing through tun, with MTU-sized
// scratch buffers and an empty dispatch table.
func NewLoop(tun Tunnel, metrics *Metrics, opts Options) *Loop {
	mtu := opts.ConnOptions.MTU
	if mtu <= 0 {
		mtu = tcp.DefaultMTU
	}
	return &Loop{
		tun:           tun,
		table:         make(map[Quad]*entry),
		opts:          opts,
		metrics:       metrics,
		buf:           make([]byte, mtu),
		hasPacketInfo: opts.HasPacketInfo,
	}
}

// Len reports the number of Connections currently tracked.
func (l *Loop) Len() int { return len(l.table) }

// RunOnce executes one iteration of the dispatch loop: reads one datagram
// (blocking), parses it, routes it to an existing Connection or to accept,
// and evicts any Connection that reached a terminal state. Malformed
// headers are logged and dropped; they never poison the table.
func (l *Loop) RunOnce() error {
	n, err := l.tun.Recv(l.buf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	data := l.buf[:n]
	if l.hasPacketInfo {
		if len(data) < 4 {
			return nil
		}
		data = data[4:]
	}
	l.handleDatagram(data)
	return nil
}

// Run calls RunOnce until it returns an error (e.g. the tunnel closing).
func (l *Loop) Run() error {
	for {
		if err := l.RunOnce(); err != nil {
			return err
		}
	}
}

func (l *Loop) handleDatagram(data []byte) {
	ifrm, err := ipv4.NewFrame(data)
	if err != nil {
		l.drop("dispatch:short-ip", err)
		return
	}
	var v rstcp.Validator
	ifrm.ValidateExceptCRC(&v)
	if err := v.Err(); err != nil {
		l.drop("dispatch:bad-ip", err)
		return
	}
	if ifrm.Protocol() != rstcp.IPProtoTCP {
		return // not our business; silently ignored, not dropped-as-malformed.
	}

	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		l.drop("dispatch:short-tcp", err)
		return
	}
	v.ResetErr()
	tfrm.ValidateExceptCRC(&v)
	if err := v.Err(); err != nil {
		l.drop("dispatch:bad-tcp", err)
		return
	}

	payloadLen := len(tfrm.Payload())
	seg := tfrm.Segment(payloadLen)
	quad := Quad{
		SrcAddr: *ifrm.SourceAddr(),
		SrcPort: tfrm.SourcePort(),
		DstAddr: *ifrm.DestinationAddr(),
		DstPort: tfrm.DestinationPort(),
	}

	if e, ok := l.table[quad]; ok {
		l.onSegment(quad, e, seg)
		return
	}
	l.accept(quad, seg)
}

func (l *Loop) accept(quad Quad, seg tcp.Segment) {
	conn, err := tcp.Accept(l.tun, quad.DstAddr, quad.SrcAddr, quad.DstPort, quad.SrcPort, seg, l.opts.ConnOptions)
	if err != nil {
		l.logerr("dispatch:accept", quad, err)
		return
	}
	if conn == nil {
		return // not a SYN; this core only handles passive opens.
	}
	id := uuid.New()
	l.table[quad] = &entry{id: id, conn: conn}
	if l.metrics != nil {
		l.metrics.ConnectionsByState.WithLabelValues(conn.State().String()).Inc()
	}
	l.debug("dispatch:accept", quad, id, conn)
}

func (l *Loop) onSegment(quad Quad, e *entry, seg tcp.Segment) {
	prevState := e.conn.State()
	terminal, err := e.conn.OnSegment(l.tun, seg)
	if err != nil {
		l.logerr("dispatch:on_segment", quad, err)
	}
	if l.metrics != nil {
		if newState := e.conn.State(); newState != prevState {
			l.metrics.ConnectionsByState.WithLabelValues(prevState.String()).Dec()
			l.metrics.ConnectionsByState.WithLabelValues(newState.String()).Inc()
		}
		l.metrics.SegmentsAccepted.Inc()
		l.metrics.BytesRelayed.Add(float64(seg.DATALEN))
	}
	if terminal {
		delete(l.table, quad)
		if l.metrics != nil {
			l.metrics.ConnectionsByState.WithLabelValues(e.conn.State().String()).Dec()
			if err == nil && !e.conn.State().IsTerminal() {
				// Only the SYN-RECEIVED reset path ends a connection outside TIME-WAIT.
				l.metrics.ResetsSent.Inc()
			}
		}
		l.debug("dispatch:evict", quad, e.id, e.conn)
	}
}

func (l *Loop) drop(msg string, err error) {
	if l.metrics != nil {
		l.metrics.SegmentsRejected.Inc()
	}
	internal.LogAttrs(l.opts.Log, slog.LevelDebug, msg, slog.String("err", err.Error()))
}

func (l *Loop) logerr(msg string, quad Quad, err error) {
	internal.LogAttrs(l.opts.Log, slog.LevelError, msg, slog.String("quad", quad.String()), slog.String("err", err.Error()))
}

func (l *Loop) debug(msg string, quad Quad, id uuid.UUID, conn *tcp.Connection) {
	internal.LogAttrs(l.opts.Log, slog.LevelDebug, msg,
		slog.String("quad", quad.String()),
		slog.String("conn_id", id.String()),
		slog.String("state", conn.State().String()),
	)
}

package tcp

import (
	"log/slog"

	"github.com/vincepr/rs-tcp"
	"github.com/vincepr/rs-tcp/ipv4"
)

// Tunnel is the synchronous byte-oriented device a Connection writes
// outbound datagrams to (EXTERNAL INTERFACES). The dispatch loop that reads
// inbound datagrams is a separate concern; Connection only ever sends.
type Tunnel interface {
	Send(datagram []byte) error
}

const (
	// DefaultMTU bounds the size of any one emitted datagram.
	DefaultMTU = 1500
	// DefaultRecvWindow is the window this core advertises absent an
	// explicit Options.RecvWindow.
	DefaultRecvWindow Size = 1024

	ipHeaderLen  = 20
	tcpHeaderLen = 20
)

// SendSequence holds local ("send") sequence-space state (RFC 9293 §3.3.1):
// sequence numbers corresponding to data this core transmits.
type SendSequence struct {
	ISS Value // initial send sequence number, chosen at Accept.
	UNA Value // oldest unacknowledged sequence number.
	NXT Value // next sequence number this core will assign.
	WND Size  // current send window, as advertised by the peer.
	WL1 Value // seq of the segment used for the last window update.
	WL2 Value // ack of the segment used for the last window update.
}

// RecvSequence holds remote ("receive") sequence-space state: sequence
// numbers corresponding to data this core accepts from the peer.
type RecvSequence struct {
	IRS Value // peer's initial sequence number.
	NXT Value // next sequence number this core expects.
	WND Size  // receive window this core advertises.
}

// Connection is a Transmission Control Block restricted to the
// passive-open / active-close subset of RFC 9293 this core implements:
// SYN-RECEIVED, ESTABLISHED, FIN-WAIT-1, FIN-WAIT-2, TIME-WAIT. It owns one
// State, one SendSequence, one RecvSequence, and the reverse-direction
// addressing needed to emit replies. A Connection is created exclusively by
// Accept and has no back-reference to whatever table holds it; eviction is
// the caller's responsibility once OnSegment reports terminal.
type Connection struct {
	state State
	snd   SendSequence
	rcv   RecvSequence

	localAddr, remoteAddr [4]byte
	localPort, remotePort uint16

	// pendingFlags is the cached template of control flags the next write
	// carries. SYN and FIN are cleared from it by write after a successful
	// emission so neither is ever sent twice (§9 design notes).
	pendingFlags Flags
	autoClose    bool
	mtu          int
	scratch      []byte

	logger
}

// Options configures a Connection created by Accept.
type Options struct {
	// ISS is the initial send sequence number used when ISSGen is nil.
	// Tests fix it to a known value (often zero); it is ignored if ISSGen
	// is set.
	ISS Value
	// ISSGen, if set, derives the initial send sequence number from the
	// flow's 4-tuple instead of using ISS directly. Production callers
	// should set this to a NewKeyedISSGenerator so the ISN is not
	// predictable by an off-path attacker (RFC 6528).
	ISSGen ISSGenerator
	// RecvWindow is the window this core advertises. Defaults to
	// DefaultRecvWindow if zero.
	RecvWindow Size
	// AutoClose makes the core issue an active close immediately upon
	// reaching ESTABLISHED, per the §9 "Auto-close simplification" note.
	AutoClose bool
	// MTU bounds emitted datagrams. Defaults to DefaultMTU if zero.
	MTU int
	Log *slog.Logger
}

// State returns the current state of the connection.
func (c *Connection) State() State { return c.state }

// LocalAddr and RemoteAddr report the 4-tuple endpoints of the connection,
// in case a caller needs them for logging or metrics without re-deriving
// the Quad.
func (c *Connection) LocalAddr() ([4]byte, uint16)  { return c.localAddr, c.localPort }
func (c *Connection) RemoteAddr() ([4]byte, uint16) { return c.remoteAddr, c.remotePort }

// Accept processes an inbound segment for a 4-tuple not yet in the dispatch
// table. If seg does not carry SYN, Accept silently ignores it and returns
// (nil, nil): this core handles only passive opens, and RFC 793 would RST
// here but this is a deliberate simplification. Otherwise it initializes a
// new Connection in SYN-RECEIVED and emits a SYN+ACK via tun.
func Accept(tun Tunnel, localAddr, remoteAddr [4]byte, localPort, remotePort uint16, seg Segment, opts Options) (*Connection, error) {
	if !seg.Flags.HasAny(FlagSYN) {
		return nil, nil
	}
	mtu := opts.MTU
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	rcvWnd := opts.RecvWindow
	if rcvWnd == 0 {
		rcvWnd = DefaultRecvWindow
	}
	iss := opts.ISS
	if opts.ISSGen != nil {
		iss = opts.ISSGen.ISS(localAddr, remoteAddr, localPort, remotePort)
	}
	c := &Connection{
		state: StateSynRcvd,
		snd: SendSequence{
			ISS: iss,
			UNA: iss,
			NXT: iss,
			WND: seg.WND,
		},
		rcv: RecvSequence{
			IRS: seg.SEQ,
			NXT: Add(seg.SEQ, 1),
			WND: rcvWnd,
		},
		localAddr:    localAddr,
		remoteAddr:   remoteAddr,
		localPort:    localPort,
		remotePort:   remotePort,
		autoClose:    opts.AutoClose,
		mtu:          mtu,
		scratch:      make([]byte, mtu),
		pendingFlags: synack,
		logger:       logger{log: opts.Log},
	}
	c.traceSeg("tcp:accept", seg)
	c.traceSnd("tcp:accept.snd-init")
	c.traceRcv("tcp:accept.rcv-init")
	if _, err := c.write(tun, nil); err != nil {
		return nil, err
	}
	c.trace("tcp:accept.syn-ack-sent")
	return c, nil
}

// OnSegment processes one inbound segment against an already-accepted
// Connection, per §4.C. It reports whether the Connection should be evicted
// from the dispatch table: it has reached TIME-WAIT, or it was reset from
// SYN-RECEIVED (its State stays SYN-RECEIVED in that case).
func (c *Connection) OnSegment(tun Tunnel, seg Segment) (terminal bool, err error) {
	segLen := seg.LEN()
	if !IsAcceptableSegment(c.rcv.NXT, seg.SEQ, segLen, c.rcv.WND) {
		if seg.Flags.HasAny(FlagRST) {
			c.trace("tcp:on_segment.drop-rst-unacceptable")
			return false, nil
		}
		c.debug("tcp:on_segment.unacceptable", slog.Uint64("seg.seq", uint64(seg.SEQ)), slog.Uint64("rcv.nxt", uint64(c.rcv.NXT)))
		c.pendingFlags = FlagACK
		_, err = c.write(tun, nil)
		return false, err
	}

	c.rcv.NXT = Add(seg.SEQ, segLen)
	c.traceRcv("tcp:on_segment.rcv-advanced")

	if !seg.Flags.HasAny(FlagACK) {
		return false, nil
	}

	switch {
	case c.state == StateSynRcvd:
		if c.snd.UNA.LessThanEq(seg.ACK) && seg.ACK.LessThanEq(c.snd.NXT) {
			c.snd.UNA = seg.ACK
			c.state = StateEstablished
			c.traceSnd("tcp:on_segment.established")
		} else {
			// SYN-RECEIVED is never synchronized: an unacceptable ACK here
			// always forces a reset and drops the connection.
			return true, c.sendReset(tun, seg)
		}

	case c.state == StateEstablished || c.state == StateFinWait1 || c.state == StateFinWait2:
		switch {
		case seg.ACK == c.snd.UNA:
			// Duplicate ack: nothing new acknowledged, but the segment's
			// other control information (FIN, in-sequence data) is still
			// processed below — it is not "unacceptable", just stale.
		case IsValidAck(c.snd.UNA, seg.ACK, c.snd.NXT):
			c.snd.UNA = seg.ACK
			c.traceSnd("tcp:on_segment.acked")
		default:
			// Acks data we never sent: not a duplicate, genuinely invalid.
			c.pendingFlags = FlagACK
			_, err = c.write(tun, nil)
			return false, err
		}
	}

	if c.state == StateEstablished && c.autoClose {
		c.pendingFlags = finack
		if _, err = c.write(tun, nil); err != nil {
			return false, err
		}
		c.state = StateFinWait1
		c.traceSnd("tcp:on_segment.active-close")
	}

	if c.state == StateFinWait1 && c.snd.UNA == Add(c.snd.ISS, 2) {
		c.state = StateFinWait2
	}

	if seg.Flags.HasAny(FlagFIN) && c.state == StateFinWait2 {
		c.pendingFlags = FlagACK
		if _, err = c.write(tun, nil); err != nil {
			return false, err
		}
		c.state = StateTimeWait
		c.traceSnd("tcp:on_segment.time-wait")
	}

	return c.state.IsTerminal(), nil
}

// write assembles one IPv4 datagram carrying one TCP segment (stamped with
// snd.NXT/rcv.NXT and c.pendingFlags) plus up to len(payload) bytes of
// data, writes it to tun, and advances snd.NXT. It is the one place SYN/FIN
// leave c.pendingFlags, so neither is ever emitted twice.
func (c *Connection) write(tun Tunnel, payload []byte) (int, error) {
	flags := c.pendingFlags
	payloadLen, err := c.emit(tun, c.snd.NXT, c.rcv.NXT, flags, payload)
	if err != nil {
		return 0, err
	}

	c.snd.NXT.UpdateForward(Size(payloadLen))
	if flags.HasAny(FlagSYN) {
		c.snd.NXT.UpdateForward(1)
		c.pendingFlags &^= FlagSYN
	}
	if flags.HasAny(FlagFIN) {
		c.snd.NXT.UpdateForward(1)
		c.pendingFlags &^= FlagFIN
	}
	return payloadLen, nil
}

// emit serializes one IPv4+TCP datagram with the given sequence/ack/flags
// and hands it to tun, without touching any Connection sequence state.
// Shared by write (normal path, which does advance state) and sendReset
// (which must not: a reset does not consume sequence space).
func (c *Connection) emit(tun Tunnel, seq, ack Value, flags Flags, payload []byte) (int, error) {
	total := ipHeaderLen + tcpHeaderLen + len(payload)
	if total > c.mtu {
		total = c.mtu
	}
	payloadLen := total - ipHeaderLen - tcpHeaderLen
	if payloadLen < 0 {
		payloadLen = 0
	}

	buf := c.scratch[:total]
	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		return 0, err
	}
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, ipHeaderLen/4)
	ifrm.SetTotalLength(uint16(total))
	ifrm.SetTTL(64)
	ifrm.SetProtocol(rstcp.IPProtoTCP)
	*ifrm.SourceAddr() = c.localAddr
	*ifrm.DestinationAddr() = c.remoteAddr
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	tfrm, err := NewFrame(buf[ipHeaderLen:])
	if err != nil {
		return 0, err
	}
	tfrm.ClearHeader()
	tfrm.SetSourcePort(c.localPort)
	tfrm.SetDestinationPort(c.remotePort)
	tfrm.SetSegment(Segment{
		SEQ:   seq,
		ACK:   ack,
		WND:   c.rcv.WND,
		Flags: flags,
	}, tcpHeaderLen/4)
	tfrm.SetUrgentPtr(0)
	copy(tfrm.Payload(), payload[:payloadLen])

	var crc rstcp.CRC791
	ifrm.CRCWriteTCPPseudo(&crc)
	crc.Write(buf[ipHeaderLen:total])
	tfrm.SetCRC(rstcp.NeverZeroChecksum(crc.Sum16()))

	if err := tun.Send(buf); err != nil {
		return 0, err
	}
	return payloadLen, nil
}

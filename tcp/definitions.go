package tcp

import (
	"math/bits"
	"strconv"
	"unsafe"
)

// Segment represents an incoming/outgoing TCP segment in the sequence space.
type Segment struct {
	SEQ     Value // sequence number of first octet of segment. If SYN is set it is the initial sequence number (ISN) and the first data octet is ISN+1.
	ACK     Value // acknowledgment number. If ACK is set it is sequence number of first octet the sender of the segment is expecting to receive next.
	DATALEN Size  // the number of octets occupied by the data (payload), not counting SYN and FIN.
	WND     Size  // segment window.
	Flags   Flags // TCP control flags.
}

// LEN returns the length of the segment in octets, including SYN and FIN flags.
func (seg *Segment) LEN() Size {
	add := Size(seg.Flags>>0) & 1 // Add FIN bit.
	add += Size(seg.Flags>>1) & 1 // Add SYN bit.
	return seg.DATALEN + add
}

// Last returns the sequence number of the last octet of the segment.
func (seg *Segment) Last() Value {
	seglen := seg.LEN()
	if seglen == 0 {
		return seg.SEQ
	}
	return Add(seg.SEQ, seglen) - 1
}

// StringExchange returns a RFC9293-styled visualization of a segment
// exchange between two states, e.g:
//
//	SYN-RECEIVED --> <SEQ=300><ACK=91>[SYN,ACK]      --> ESTABLISHED
func StringExchange(seg Segment, A, B State, invertDir bool) string {
	b := make([]byte, 0, 64)
	b = appendStringExchange(b, seg, A, B, invertDir)
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func appendStringExchange(buf []byte, seg Segment, A, B State, invertDir bool) []byte {
	const emptySpaces = "             "
	const fill = len(emptySpaces) - 1
	appendVal := func(buf []byte, name string, i Value) []byte {
		buf = append(buf, '<')
		buf = append(buf, name...)
		buf = append(buf, '=')
		buf = strconv.AppendInt(buf, int64(i), 10)
		buf = append(buf, '>')
		return buf
	}
	startLen := len(buf)
	dirSep := []byte(" --> ")
	if invertDir {
		dirSep = []byte(" <-- ")
	}
	astr := A.String()
	buf = append(buf, astr...)
	if len(astr) < fill {
		buf = append(buf, emptySpaces[:fill-len(astr)]...)
	}
	buf = append(buf, dirSep...)
	buf = appendVal(buf, "SEQ", seg.SEQ)
	buf = appendVal(buf, "ACK", seg.ACK)
	if seg.DATALEN > 0 {
		buf = appendVal(buf, "DATA", Value(seg.DATALEN))
	}
	buf = append(buf, '[')
	buf = seg.Flags.AppendFormat(buf)
	buf = append(buf, ']')
	if len(buf)-startLen < 48 {
		buf = append(buf, emptySpaces[:48-len(buf)]...)
	}
	buf = append(buf, dirSep...)
	buf = append(buf, B.String()...)
	return buf
}

// Flags is a TCP flags bit-mask, i.e: SYN, FIN, ACK. Bit positions match the
// wire encoding of the TCP offset+flags word (RFC 9293 §3.1, RFC 3168 for
// ECE/CWR) so a Flags value can be masked directly out of the header.
type Flags uint16

const (
	FlagFIN Flags = 1 << iota // FlagFIN - no more data from sender.
	FlagSYN                   // FlagSYN - synchronize sequence numbers.
	FlagRST                   // FlagRST - reset the connection.
	FlagPSH                   // FlagPSH - push function.
	FlagACK                   // FlagACK - acknowledgment field significant.
	FlagURG                   // FlagURG - urgent pointer field significant.
	FlagECE                   // FlagECE - ECN-Echo.
	FlagCWR                   // FlagCWR - congestion window reduced.
	FlagNS                    // FlagNS  - nonce sum (RFC 3540).
)

const flagMask = 0x01ff

// Shorthand combinations used throughout the state machine.
const (
	synack = FlagSYN | FlagACK
	finack = FlagFIN | FlagACK
)

// HasAll checks if mask bits are all set in the receiver flags.
func (flags Flags) HasAll(mask Flags) bool { return flags&mask == mask }

// HasAny checks if one or more mask bits are set in receiver flags.
func (flags Flags) HasAny(mask Flags) bool { return flags&mask != 0 }

// Mask returns the flags with non-flag bits unset.
func (flags Flags) Mask() Flags { return flags & flagMask }

// String returns a human readable flag string, e.g. "[SYN,ACK]".
func (flags Flags) String() string {
	switch flags {
	case 0:
		return "[]"
	case synack:
		return "[SYN,ACK]"
	case finack:
		return "[FIN,ACK]"
	case FlagACK:
		return "[ACK]"
	case FlagSYN:
		return "[SYN]"
	case FlagFIN:
		return "[FIN]"
	case FlagRST:
		return "[RST]"
	}
	buf := make([]byte, 0, 2+3*bits.OnesCount16(uint16(flags)))
	buf = append(buf, '[')
	buf = flags.AppendFormat(buf)
	buf = append(buf, ']')
	return string(buf)
}

// AppendFormat appends a human readable flag string to b, returning the extended buffer.
func (flags Flags) AppendFormat(b []byte) []byte {
	if flags == 0 {
		return b
	}
	const flaglen = 3
	const strflags = "FINSYNRSTPSHACKURGECECWRNS "
	var addcommas bool
	for flags != 0 {
		i := bits.TrailingZeros16(uint16(flags))
		if addcommas {
			b = append(b, ',')
		} else {
			addcommas = true
		}
		b = append(b, strflags[i*flaglen:i*flaglen+flaglen]...)
		flags &= ^(1 << i)
	}
	return b
}

// State enumerates the states a Connection progresses through. This core
// implements the passive-open / active-close subset of RFC 9293's state
// machine: SYN-RECEIVED, ESTABLISHED, FIN-WAIT-1, FIN-WAIT-2, TIME-WAIT,
// plus the CLOSED pseudo-state before a Connection exists.
type State uint8

const (
	// StateClosed represents no connection state at all: the pseudo-state
	// before accept creates a Connection.
	StateClosed State = iota
	// StateSynRcvd represents waiting for a confirming ACK of our SYN+ACK
	// after having both received and sent a connection request.
	StateSynRcvd
	// StateEstablished represents an open connection.
	StateEstablished
	// StateFinWait1 represents waiting for an ACK of our FIN, or a
	// simultaneous FIN from the remote TCP.
	StateFinWait1
	// StateFinWait2 represents waiting for a connection termination
	// request from the remote TCP, our FIN having been acknowledged.
	StateFinWait2
	// StateTimeWait represents waiting for enough time to pass to be sure
	// the remote TCP received the ACK of its FIN. Treated as terminal by
	// this core: no 2MSL timer is run.
	StateTimeWait
)

// IsSynchronized returns true once both peers have exchanged initial
// sequence numbers, i.e. any state from ESTABLISHED onward. It is false for
// SYN-RECEIVED and gates reset-generation policy (§9 design notes).
func (s State) IsSynchronized() bool { return s >= StateEstablished }

// IsTerminal returns true if the Connection should be evicted from the
// dispatch table. Only TIME-WAIT is terminal in this core.
func (s State) IsTerminal() bool { return s == StateTimeWait }

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateSynRcvd:
		return "SYN-RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN-WAIT-1"
	case StateFinWait2:
		return "FIN-WAIT-2"
	case StateTimeWait:
		return "TIME-WAIT"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

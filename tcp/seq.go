package tcp

// Value is a 32-bit TCP sequence number, interpreted as a point on a circle
// of circumference 2^32 (RFC 9293 §3.4). Ordinary +/- wraps exactly like the
// wire representation; comparisons must use the wrapped predicates below
// instead of plain <, <=.
type Value uint32

// Size is a segment length or window size, held in 16 bits like the wire
// window field. Add and UpdateForward advance a Value by a Size.
type Size uint16

// Add returns v advanced by n octets, wrapping at 2^32.
func Add(v Value, n Size) Value { return v + Value(n) }

// Sizeof returns the wrapped distance from start to end, i.e. the number of
// octets between them walking forward from start. Only meaningful when that
// distance is known to fit in 16 bits, which holds for every use in this
// package (window and in-flight byte counts).
func Sizeof(start, end Value) Size { return Size(end - start) }

// UpdateForward advances v in place by n octets.
func (v *Value) UpdateForward(n Size) { *v = Add(*v, n) }

// wrappingLess reports whether lhs precedes rhs on the sequence-number
// circle, i.e. walking forward from lhs reaches rhs before wrapping back to
// lhs. Equal values are not "less".
func wrappingLess(lhs, rhs Value) bool {
	return int32(lhs-rhs) < 0
}

// LessThan reports whether v precedes x in modular sequence order.
func (v Value) LessThan(x Value) bool { return wrappingLess(v, x) }

// LessThanEq reports whether v precedes or equals x in modular sequence order.
func (v Value) LessThanEq(x Value) bool { return v == x || wrappingLess(v, x) }

// InWindow reports whether v lies in the window [start, start+wnd), i.e. at
// or after start and strictly before start+wnd, expressed with
// IsBetweenWrapped(start-1, v, start+wnd). A zero window admits nothing: callers
// that must special-case an exact zero-window match do so themselves.
func (v Value) InWindow(start Value, wnd Size) bool {
	if wnd == 0 {
		return false
	}
	return IsBetweenWrapped(start-1, v, start+Value(wnd))
}

// IsBetweenWrapped reports whether x lies strictly between start and end,
// walking forward from start, on the sequence-number circle. Both endpoints
// are exclusive: IsBetweenWrapped(a, a, b) is always false.
func IsBetweenWrapped(start, x, end Value) bool {
	return wrappingLess(start, x) && wrappingLess(x, end)
}

// IsValidAck reports whether ack acknowledges new data without
// acknowledging data we have not yet sent: una < ack <= nxt in modular order.
func IsValidAck(una, ack, nxt Value) bool {
	return una.LessThan(ack) && ack.LessThanEq(nxt)
}

// IsAcceptableSegment implements the RFC 793 §3.3 segment-acceptability
// test. segLen is the segment length including SYN/FIN control octets.
func IsAcceptableSegment(rcvNxt, seq Value, segLen, rcvWnd Size) bool {
	switch {
	case segLen == 0 && rcvWnd == 0:
		return seq == rcvNxt
	case segLen == 0:
		return seq.InWindow(rcvNxt, rcvWnd)
	case rcvWnd == 0:
		return false
	default:
		last := Add(seq, segLen-1)
		return seq.InWindow(rcvNxt, rcvWnd) || last.InWindow(rcvNxt, rcvWnd)
	}
}

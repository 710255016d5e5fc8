package ipv4

const (
	sizeHeader = 20
)

// ToS represents the Traffic Class (a.k.a Type of Service). It is 8 bits
// long: 6 MSB are Differentiated Services, 2 LSB are Explicit Congestion
// Notification.
type ToS uint8

// DS returns the top 6 bits of the IPv4 ToS holding the Differentiated
// Services field which is used to classify packets.
func (tos ToS) DS() uint8 { return uint8(tos) >> 2 }

// ECN is the Explicit Congestion Notification which provides congestion
// control and non-congestion control traffic.
func (tos ToS) ECN() uint8 { return uint8(tos & 0b11) }

// Flags holds fragmentation field data of an IPv4 header. It is 16 bits long.
type Flags uint16

// DontFragment specifies whether the datagram can not be fragmented. This
// tunnel never fragments or reassembles; a DontFragment packet that would
// need it is simply dropped, same as any other datagram that doesn't fit.
func (f Flags) DontFragment() bool { return f&0x4000 != 0 }

// MoreFragments is cleared for unfragmented packets. This core does not
// reassemble, so any frame with MoreFragments set or a nonzero
// FragmentOffset is rejected before reaching tcp.Frame.
func (f Flags) MoreFragments() bool { return f&0x2000 != 0 }

// FragmentOffset specifies the offset of a particular fragment relative to
// the beginning of the original unfragmented IP datagram, in units of 8 bytes.
func (f Flags) FragmentOffset() uint16 { return uint16(f) & 0x1fff }

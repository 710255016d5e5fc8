package tcp

// sendReset emits a RST in response to seg, per the two RFC 9293 §3.4 cases
// this core distinguishes (§9 design notes):
//
//   - Unsynchronized (SYN-RECEIVED): the incoming segment carries no
//     sequence number this core has acknowledged yet, so the reset can't
//     be placed in-window by SEQ alone. seq=0, ack=seg.SEQ+seg.LEN(),
//     RST+ACK.
//   - Synchronized (ESTABLISHED and onward): the reset must land inside
//     the window the peer is already tracking. seq=seg.ACK, RST only, no
//     ACK field.
//
// sendReset never touches c.snd.NXT or c.pendingFlags: a reset does not
// consume sequence space and the connection is being torn down regardless.
func (c *Connection) sendReset(tun Tunnel, seg Segment) error {
	var seq, ack Value
	var flags Flags
	if c.state.IsSynchronized() {
		seq = seg.ACK
		flags = FlagRST
	} else {
		seq = 0
		ack = Add(seg.SEQ, seg.LEN())
		flags = FlagRST | FlagACK
	}
	c.traceSeg("tcp:reset", Segment{SEQ: seq, ACK: ack, Flags: flags})
	_, err := c.emit(tun, seq, ack, flags, nil)
	return err
}

package tcp

import (
	"testing"

	"github.com/vincepr/rs-tcp/ipv4"
)

type fakeTunnel struct {
	sent [][]byte
}

func (f *fakeTunnel) Send(datagram []byte) error {
	cp := make([]byte, len(datagram))
	copy(cp, datagram)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTunnel) last() Segment {
	buf := f.sent[len(f.sent)-1]
	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	tfrm, err := NewFrame(ifrm.Payload())
	if err != nil {
		panic(err)
	}
	return tfrm.Segment(len(tfrm.Payload()))
}

var (
	localAddr  = [4]byte{10, 0, 0, 1}
	remoteAddr = [4]byte{10, 0, 0, 2}
)

func acceptForTest(t *testing.T, tun *fakeTunnel, opts Options) *Connection {
	t.Helper()
	syn := Segment{SEQ: 1000, WND: 4096, Flags: FlagSYN}
	c, err := Accept(tun, localAddr, remoteAddr, 80, 54321, syn, opts)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if c == nil {
		t.Fatal("Accept returned nil Connection for a SYN segment")
	}
	return c
}

// S1: passive open completes, then auto-close emits FIN+ACK.
func TestPassiveOpenThenAutoClose(t *testing.T) {
	tun := &fakeTunnel{}
	c := acceptForTest(t, tun, Options{AutoClose: true})

	synack := tun.last()
	if synack.Flags != (FlagSYN | FlagACK) {
		t.Fatalf("expected SYN+ACK, got %s", synack.Flags)
	}
	if synack.SEQ != 0 || synack.ACK != 1001 {
		t.Fatalf("synack seq/ack = %d/%d, want 0/1001", synack.SEQ, synack.ACK)
	}
	if c.State() != StateSynRcvd {
		t.Fatalf("state = %s, want SYN-RECEIVED", c.State())
	}

	ack := Segment{SEQ: 1001, ACK: 1, Flags: FlagACK}
	terminal, err := c.OnSegment(tun, ack)
	if err != nil {
		t.Fatalf("OnSegment: %v", err)
	}
	if terminal {
		t.Fatal("connection reported terminal right after reaching ESTABLISHED")
	}
	if c.State() != StateFinWait1 {
		t.Fatalf("state = %s, want FIN-WAIT-1 (auto-close)", c.State())
	}
	finack := tun.last()
	if finack.Flags != (FlagFIN | FlagACK) {
		t.Fatalf("expected FIN+ACK on auto-close, got %s", finack.Flags)
	}
	if finack.SEQ != 1 || finack.ACK != 1001 {
		t.Fatalf("finack seq/ack = %d/%d, want 1/1001", finack.SEQ, finack.ACK)
	}
}

// S2: passive close completes through FIN-WAIT-2 into TIME-WAIT.
func TestPassiveClose(t *testing.T) {
	tun := &fakeTunnel{}
	c := acceptForTest(t, tun, Options{AutoClose: true})
	if _, err := c.OnSegment(tun, Segment{SEQ: 1001, ACK: 1, Flags: FlagACK}); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateFinWait1 {
		t.Fatalf("state = %s, want FIN-WAIT-1", c.State())
	}

	if _, err := c.OnSegment(tun, Segment{SEQ: 1001, ACK: 2, Flags: FlagACK}); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateFinWait2 {
		t.Fatalf("state = %s, want FIN-WAIT-2", c.State())
	}

	terminal, err := c.OnSegment(tun, Segment{SEQ: 1001, ACK: 2, DATALEN: 0, Flags: FlagFIN | FlagACK})
	if err != nil {
		t.Fatal(err)
	}
	if !terminal {
		t.Fatal("expected terminal=true after the peer's FIN is ACKed in FIN-WAIT-2")
	}
	if c.State() != StateTimeWait {
		t.Fatalf("state = %s, want TIME-WAIT", c.State())
	}
	finalAck := tun.last()
	if finalAck.Flags != FlagACK {
		t.Fatalf("expected bare ACK closing the handshake, got %s", finalAck.Flags)
	}
	if finalAck.ACK != 1002 {
		t.Fatalf("final ack = %d, want 1002", finalAck.ACK)
	}
}

// S3: a non-SYN segment to an unknown flow is silently ignored.
func TestAcceptIgnoresNonSYN(t *testing.T) {
	tun := &fakeTunnel{}
	seg := Segment{SEQ: 500, ACK: 0, Flags: FlagACK}
	c, err := Accept(tun, localAddr, remoteAddr, 80, 54321, seg, Options{})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if c != nil {
		t.Fatal("Accept must return nil for a non-SYN segment")
	}
	if len(tun.sent) != 0 {
		t.Fatal("Accept must not emit anything for a non-SYN segment")
	}
}

// S4: an unacceptable ACK in SYN-RECEIVED forces a reset and drops the
// connection.
func TestSynRcvdBadAckForcesReset(t *testing.T) {
	tun := &fakeTunnel{}
	c := acceptForTest(t, tun, Options{})

	bad := Segment{SEQ: 1001, ACK: 999, Flags: FlagACK}
	terminal, err := c.OnSegment(tun, bad)
	if err != nil {
		t.Fatalf("OnSegment: %v", err)
	}
	if !terminal {
		t.Fatal("expected terminal=true after a bad ACK in SYN-RECEIVED")
	}
	rst := tun.last()
	if !rst.Flags.HasAny(FlagRST) {
		t.Fatalf("expected RST in response to bad ACK, got %s", rst.Flags)
	}
	if !rst.Flags.HasAny(FlagACK) {
		t.Fatal("unsynchronized reset must carry ACK")
	}
	if rst.SEQ != 0 {
		t.Fatalf("unsynchronized reset seq = %d, want 0", rst.SEQ)
	}
	if rst.ACK != 1001 {
		t.Fatalf("unsynchronized reset ack = %d, want incoming.seq+seg_len = 1001", rst.ACK)
	}
}

// S5: an out-of-window segment in ESTABLISHED is ACKed but not consumed.
func TestEstablishedOutOfWindowSegmentNotConsumed(t *testing.T) {
	tun := &fakeTunnel{}
	c := acceptForTest(t, tun, Options{})
	if _, err := c.OnSegment(tun, Segment{SEQ: 1001, ACK: 1, Flags: FlagACK}); err != nil {
		t.Fatal(err)
	}
	c.rcv.NXT = 2000
	c.rcv.WND = 1024

	farSeg := Segment{SEQ: 5000, DATALEN: 1, Flags: FlagACK, ACK: 1}
	terminal, err := c.OnSegment(tun, farSeg)
	if err != nil {
		t.Fatal(err)
	}
	if terminal {
		t.Fatal("an out-of-window segment must not terminate the connection")
	}
	if c.rcv.NXT != 2000 {
		t.Fatalf("rcv.NXT = %d, want unchanged at 2000", c.rcv.NXT)
	}
	resp := tun.last()
	if resp.ACK != 2000 {
		t.Fatalf("response ack = %d, want 2000 (unchanged rcv.nxt)", resp.ACK)
	}
}

// S6: a segment whose range wraps past 0xFFFFFFFF is still acceptable and
// advances rcv.nxt across the wrap.
func TestEstablishedSequenceWrap(t *testing.T) {
	tun := &fakeTunnel{}
	c := acceptForTest(t, tun, Options{})
	if _, err := c.OnSegment(tun, Segment{SEQ: 1001, ACK: 1, Flags: FlagACK}); err != nil {
		t.Fatal(err)
	}
	c.rcv.NXT = 0xFFFFFFF0
	c.rcv.WND = 32

	seg := Segment{SEQ: 0xFFFFFFF8, DATALEN: 16, Flags: FlagACK, ACK: 1}
	if _, err := c.OnSegment(tun, seg); err != nil {
		t.Fatal(err)
	}
	if c.rcv.NXT != 0x00000008 {
		t.Fatalf("rcv.NXT = %#x, want 0x8 after wrap", c.rcv.NXT)
	}
}

package dispatch

import (
	"testing"

	"github.com/vincepr/rs-tcp/ipv4"
	"github.com/vincepr/rs-tcp/tcp"
)

// queueTunnel is a fake Tunnel driving the Loop from a prebuilt queue of
// inbound datagrams, recording every outbound one.
type queueTunnel struct {
	inbound [][]byte
	sent    [][]byte
}

func (q *queueTunnel) Recv(buf []byte) (int, error) {
	d := q.inbound[0]
	q.inbound = q.inbound[1:]
	return copy(buf, d), nil
}

func (q *queueTunnel) Send(datagram []byte) error {
	cp := make([]byte, len(datagram))
	copy(cp, datagram)
	q.sent = append(q.sent, cp)
	return nil
}

func (q *queueTunnel) lastSegment() tcp.Segment {
	buf := q.sent[len(q.sent)-1]
	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		panic(err)
	}
	return tfrm.Segment(len(tfrm.Payload()))
}

var (
	clientAddr = [4]byte{10, 0, 0, 2}
	serverAddr = [4]byte{10, 0, 0, 1}
)

func buildSegment(t *testing.T, srcAddr, dstAddr [4]byte, srcPort, dstPort uint16, seg tcp.Segment) []byte {
	t.Helper()
	const ipHdr, tcpHdr = 20, 20
	buf := make([]byte, ipHdr+tcpHdr)
	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(len(buf)))
	ifrm.SetTTL(64)
	ifrm.SetProtocol(6) // TCP
	*ifrm.SourceAddr() = srcAddr
	*ifrm.DestinationAddr() = dstAddr

	tfrm, err := tcp.NewFrame(buf[ipHdr:])
	if err != nil {
		t.Fatal(err)
	}
	tfrm.ClearHeader()
	tfrm.SetSourcePort(srcPort)
	tfrm.SetDestinationPort(dstPort)
	tfrm.SetSegment(seg, 5)
	return buf
}

// TestLoopFullHandshakeAndEviction drives a Loop through S1/S2 of the
// passive-open/auto-close scenario end to end, asserting the connection is
// tracked and then evicted once TIME-WAIT is reached.
func TestLoopFullHandshakeAndEviction(t *testing.T) {
	tun := &queueTunnel{}
	l := NewLoop(tun, nil, Options{ConnOptions: tcp.Options{AutoClose: true}})

	syn := buildSegment(t, clientAddr, serverAddr, 54321, 80, tcp.Segment{SEQ: 1000, WND: 4096, Flags: tcp.FlagSYN})
	tun.inbound = append(tun.inbound, syn)
	if err := l.RunOnce(); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 1 {
		t.Fatalf("table has %d entries after SYN, want 1", l.Len())
	}
	synack := tun.lastSegment()
	if synack.Flags != (tcp.FlagSYN | tcp.FlagACK) {
		t.Fatalf("expected SYN+ACK, got %s", synack.Flags)
	}

	ack := buildSegment(t, clientAddr, serverAddr, 54321, 80, tcp.Segment{SEQ: 1001, ACK: 1, Flags: tcp.FlagACK})
	tun.inbound = append(tun.inbound, ack)
	if err := l.RunOnce(); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 1 {
		t.Fatalf("table has %d entries after first ACK, want 1 (still open)", l.Len())
	}
	finack := tun.lastSegment()
	if finack.Flags != (tcp.FlagFIN | tcp.FlagACK) {
		t.Fatalf("expected auto-close FIN+ACK, got %s", finack.Flags)
	}

	ack2 := buildSegment(t, clientAddr, serverAddr, 54321, 80, tcp.Segment{SEQ: 1001, ACK: 2, Flags: tcp.FlagACK})
	tun.inbound = append(tun.inbound, ack2)
	if err := l.RunOnce(); err != nil {
		t.Fatal(err)
	}

	peerFin := buildSegment(t, clientAddr, serverAddr, 54321, 80, tcp.Segment{SEQ: 1001, ACK: 2, Flags: tcp.FlagFIN | tcp.FlagACK})
	tun.inbound = append(tun.inbound, peerFin)
	if err := l.RunOnce(); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 0 {
		t.Fatalf("table has %d entries after TIME-WAIT, want 0 (evicted)", l.Len())
	}
}

// TestLoopIgnoresNonTCP verifies a non-TCP IPv4 datagram is silently dropped
// without creating a table entry.
func TestLoopIgnoresNonTCP(t *testing.T) {
	tun := &queueTunnel{}
	l := NewLoop(tun, nil, Options{})

	buf := make([]byte, 20)
	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(20)
	ifrm.SetProtocol(1) // ICMP
	*ifrm.SourceAddr() = clientAddr
	*ifrm.DestinationAddr() = serverAddr
	tun.inbound = append(tun.inbound, buf)

	if err := l.RunOnce(); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 0 {
		t.Fatalf("table has %d entries after non-TCP datagram, want 0", l.Len())
	}
	if len(tun.sent) != 0 {
		t.Fatal("Loop must not emit anything in response to a non-TCP datagram")
	}
}

// TestLoopStripsPacketInfoPrefix verifies a 4-byte TUN flags+protocol prefix
// is stripped before IPv4 parsing when HasPacketInfo is set.
func TestLoopStripsPacketInfoPrefix(t *testing.T) {
	tun := &queueTunnel{}
	l := NewLoop(tun, nil, Options{HasPacketInfo: true})

	syn := buildSegment(t, clientAddr, serverAddr, 54321, 80, tcp.Segment{SEQ: 1000, WND: 4096, Flags: tcp.FlagSYN})
	withPrefix := append([]byte{0, 0, 0x08, 0x00}, syn...)
	tun.inbound = append(tun.inbound, withPrefix)

	if err := l.RunOnce(); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 1 {
		t.Fatalf("table has %d entries after prefixed SYN, want 1", l.Len())
	}
}

package tcp

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// ISSGenerator produces initial sequence numbers for Accept. The zero value
// is not usable; construct one with NewKeyedISSGenerator.
type ISSGenerator interface {
	ISS(localAddr, remoteAddr [4]byte, localPort, remotePort uint16) Value
}

// zeroISS always returns 0, matching the original prototype's fixed ISN and
// useful for deterministic tests (§9 design note: "ISS defaults to 0 for
// testability").
type zeroISS struct{}

func (zeroISS) ISS([4]byte, [4]byte, uint16, uint16) Value { return 0 }

// ZeroISS is the testable, predictable ISSGenerator.
var ZeroISS ISSGenerator = zeroISS{}

// keyedISS derives an initial sequence number from the flow's 4-tuple and a
// per-process secret via a keyed BLAKE2b hash, following RFC 6528's
// guidance that the ISN must not be predictable by an off-path attacker.
// Unlike RFC 6528's 4-microsecond timer addition, the hash alone is the
// entire generator: this core has no retransmission or reuse-window logic
// that a monotonically increasing component would protect.
type keyedISS struct {
	secret [32]byte
}

// NewKeyedISSGenerator builds an ISSGenerator keyed on secret. Two
// generators built from the same secret assign the same ISS to the same
// 4-tuple; callers that need unpredictability across restarts must supply
// a fresh random secret each time (e.g. from crypto/rand).
func NewKeyedISSGenerator(secret [32]byte) ISSGenerator {
	return &keyedISS{secret: secret}
}

func (k *keyedISS) ISS(localAddr, remoteAddr [4]byte, localPort, remotePort uint16) Value {
	h, err := blake2b.New256(k.secret[:])
	if err != nil {
		// Only possible if the key exceeds blake2b's 64 byte maximum,
		// which a [32]byte secret never does.
		panic(err)
	}
	h.Write(localAddr[:])
	h.Write(remoteAddr[:])
	var portBuf [4]byte
	binary.BigEndian.PutUint16(portBuf[0:2], localPort)
	binary.BigEndian.PutUint16(portBuf[2:4], remotePort)
	h.Write(portBuf[:])
	sum := h.Sum(nil)
	return Value(binary.BigEndian.Uint32(sum[:4]))
}

// Package dispatch implements the single-threaded, cooperative read/parse/
// demux/route/write cycle (spec §4.E): one loop owns the tunnel and the
// table of in-flight Connections, keyed by 4-tuple flow identity.
package dispatch

import (
	"fmt"
)

// Quad is the flow identity a Connection is keyed by: identity only, no
// mutable state. Comparable, so it can be used directly as a map key.
type Quad struct {
	SrcAddr [4]byte
	SrcPort uint16
	DstAddr [4]byte
	DstPort uint16
}

func (q Quad) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d -> %d.%d.%d.%d:%d",
		q.SrcAddr[0], q.SrcAddr[1], q.SrcAddr[2], q.SrcAddr[3], q.SrcPort,
		q.DstAddr[0], q.DstAddr[1], q.DstAddr[2], q.DstAddr[3], q.DstPort)
}

// Reverse swaps source and destination, i.e. the Quad as seen from the
// other end of the flow. Replies are always addressed with a reversed Quad.
func (q Quad) Reverse() Quad {
	return Quad{SrcAddr: q.DstAddr, SrcPort: q.DstPort, DstAddr: q.SrcAddr, DstPort: q.SrcPort}
}

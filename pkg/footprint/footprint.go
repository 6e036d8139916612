// Package footprint implements the read/write/port footprints rewrite rules
// declare, and the independence predicate the scheduler uses to decide
// whether two pending rewrites may run in the same tick without conflict.
package footprint

import (
	"encoding/binary"
	"sort"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// IDSet is an ordered set of 32-byte ids (node or edge hashes), kept as a
// sorted slice so Intersects can run as a linear zipper over both sets
// instead of a hash-based membership scan — the same trade the reference
// scheduler makes with BTreeSet.
type IDSet struct {
	ids []ident.Hash
}

// InsertNode adds a node id to the set.
func (s *IDSet) InsertNode(id ident.NodeID) { s.insert(ident.Hash(id)) }

// InsertEdge adds an edge id to the set.
func (s *IDSet) InsertEdge(id ident.EdgeID) { s.insert(ident.Hash(id)) }

func (s *IDSet) insert(h ident.Hash) {
	i := sort.Search(len(s.ids), func(i int) bool { return !s.ids[i].Less(h) })
	if i < len(s.ids) && s.ids[i] == h {
		return
	}
	s.ids = append(s.ids, ident.Hash{})
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = h
}

// Intersects reports whether s and other share any element.
func (s IDSet) Intersects(other IDSet) bool {
	i, j := 0, 0
	for i < len(s.ids) && j < len(other.ids) {
		switch {
		case s.ids[i].Less(other.ids[j]):
			i++
		case other.ids[j].Less(s.ids[i]):
			j++
		default:
			return true
		}
	}
	return false
}

// Ids returns the set's members in ascending order.
func (s IDSet) Ids() []ident.Hash { return append([]ident.Hash(nil), s.ids...) }

// PortKey is an opaque, caller-derived 64-bit identifier for a boundary
// port. The scheduler only needs stable equality/ordering; PackPortKey below
// supplies one deterministic derivation from a node id, a port number, and a
// direction flag.
type PortKey uint64

// PackPortKey derives a PortKey from a node, a port number, and a direction
// flag: (fingerprint<<32) | (port&0x7FFFFFFF)<<1 | dirBit, where fingerprint
// is the little-endian uint64 of the node id's first 8 bytes, truncated to
// 32 bits. This exact layout is part of the scheduler's conflict-detection
// contract — changing it changes which ports compare equal.
func PackPortKey(node ident.NodeID, port uint32, dirIn bool) PortKey {
	fingerprint := binary.LittleEndian.Uint64(node[0:8]) & 0xFFFFFFFF

	var dirBit uint64
	if dirIn {
		dirBit = 1
	}
	return PortKey((fingerprint << 32) | (uint64(port&0x7FFFFFFF) << 1) | dirBit)
}

// PortSet is an ordered set of PortKey values.
type PortSet struct {
	keys []PortKey
}

// Insert adds a port key to the set.
func (s *PortSet) Insert(key PortKey) {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })
	if i < len(s.keys) && s.keys[i] == key {
		return
	}
	s.keys = append(s.keys, 0)
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = key
}

// Intersects reports whether s and other share any port key.
func (s PortSet) Intersects(other PortSet) bool {
	i, j := 0, 0
	for i < len(s.keys) && j < len(other.keys) {
		switch {
		case s.keys[i] < other.keys[j]:
			i++
		case other.keys[j] < s.keys[i]:
			j++
		default:
			return true
		}
	}
	return false
}

// Keys returns the set's members in ascending order.
func (s PortSet) Keys() []PortKey { return append([]PortKey(nil), s.keys...) }

// AttachmentSet is an ordered set of attachment keys, already fully scoped
// (each AttachmentKey's owner carries its own WarpID).
type AttachmentSet struct {
	keys []graph.AttachmentKey
}

// Insert adds an attachment key to the set.
func (s *AttachmentSet) Insert(key graph.AttachmentKey) {
	i := sort.Search(len(s.keys), func(i int) bool { return !s.keys[i].Less(key) })
	if i < len(s.keys) && s.keys[i] == key {
		return
	}
	s.keys = append(s.keys, graph.AttachmentKey{})
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = key
}

// Intersects reports whether s and other share any attachment key.
func (s AttachmentSet) Intersects(other AttachmentSet) bool {
	i, j := 0, 0
	for i < len(s.keys) && j < len(other.keys) {
		switch c := s.keys[i].Compare(other.keys[j]); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			return true
		}
	}
	return false
}

// Keys returns the set's members in ascending order.
func (s AttachmentSet) Keys() []graph.AttachmentKey {
	return append([]graph.AttachmentKey(nil), s.keys...)
}

// Footprint summarizes the resources one candidate rewrite reads and writes:
// node and edge read/write sets, attachment read/write sets, and the two
// boundary-port sets (in/out — a port key conflicts with the same key in
// either set of another footprint; PackPortKey encodes the direction, so the
// in and out keys of one port differ). FactorMask is a coarse 64-bit bitmask usable as
// an O(1) prefilter before the full independence check runs.
type Footprint struct {
	NRead, NWrite IDSet
	ERead, EWrite IDSet
	ARead, AWrite AttachmentSet
	BIn, BOut     PortSet
	FactorMask    uint64
}

// Independent reports whether a and b may execute in the same tick without
// conflict. The rule, in order:
//
//  1. FactorMask: if both masks are nonzero and share no bit, they cannot
//     conflict — an O(1) fast path checked first. A zero mask never takes
//     this path, so footprints without a mask get the full check below.
//  2. Node writes conflict with any node read or write in the other set.
//  3. Node reads conflict only with node writes in the other set.
//  4. The same two rules apply to edges.
//  5. The same two rules apply to attachments.
//  6. Any overlap between either footprint's combined (BIn ∪ BOut) port set
//     and the other's conflicts, whichever set holds the key. In and out
//     keys of the same port differ in their direction bit and do not overlap.
func Independent(a, b Footprint) bool {
	if a.FactorMask != 0 && b.FactorMask != 0 && a.FactorMask&b.FactorMask == 0 {
		return true
	}

	if a.NWrite.Intersects(b.NWrite) || a.NWrite.Intersects(b.NRead) ||
		b.NWrite.Intersects(a.NRead) {
		return false
	}
	if a.EWrite.Intersects(b.EWrite) || a.EWrite.Intersects(b.ERead) ||
		b.EWrite.Intersects(a.ERead) {
		return false
	}
	if a.AWrite.Intersects(b.AWrite) || a.AWrite.Intersects(b.ARead) ||
		b.AWrite.Intersects(a.ARead) {
		return false
	}

	aPorts := combinedPorts(a)
	bPorts := combinedPorts(b)
	if aPorts.Intersects(bPorts) {
		return false
	}

	return true
}

func combinedPorts(f Footprint) PortSet {
	var combined PortSet
	for _, k := range f.BIn.Keys() {
		combined.Insert(k)
	}
	for _, k := range f.BOut.Keys() {
		combined.Insert(k)
	}
	return combined
}

// Package ident implements domain-separated content identifiers for
// warp-core's graph model.
//
// Every identifier is a 32-byte BLAKE3 digest of a domain prefix followed by
// a UTF-8 label. The prefix guarantees that a node id, an edge id, a type
// id, and a warp id derived from the same label never collide, even though
// all four are 32-byte values drawn from the same hash function.
package ident

import (
	"bytes"
	"fmt"

	"lukechampine.com/blake3"
)

// Hash is a raw 32-byte content identifier. All ids in warp-core — node,
// edge, type, warp, rule — are Hash values distinguished only by the domain
// prefix used to derive them.
type Hash [32]byte

// Compare returns -1, 0, or 1 per the usual ordering contract, comparing the
// two hashes byte-lexicographically. This ordering is the sole canonical
// sort key used throughout the engine.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// Less reports whether h sorts strictly before other.
func (h Hash) Less(other Hash) bool {
	return h.Compare(other) < 0
}

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// IsZero reports whether h is the all-zero hash (never a valid BLAKE3
// output in practice, but used as a sentinel in a few places, e.g. "no
// parent attachment").
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// NodeID, EdgeID, TypeID, and WarpID are all Hash values; the Go type system
// keeps them from being accidentally interchanged even though their
// underlying representation is identical.
type (
	NodeID Hash
	EdgeID Hash
	TypeID Hash
	WarpID Hash
)

func (id NodeID) Compare(other NodeID) int { return Hash(id).Compare(Hash(other)) }
func (id NodeID) Less(other NodeID) bool   { return Hash(id).Less(Hash(other)) }
func (id NodeID) String() string           { return Hash(id).String() }

func (id EdgeID) Compare(other EdgeID) int { return Hash(id).Compare(Hash(other)) }
func (id EdgeID) Less(other EdgeID) bool   { return Hash(id).Less(Hash(other)) }
func (id EdgeID) String() string           { return Hash(id).String() }

func (id TypeID) Compare(other TypeID) int { return Hash(id).Compare(Hash(other)) }
func (id TypeID) Less(other TypeID) bool   { return Hash(id).Less(Hash(other)) }
func (id TypeID) String() string           { return Hash(id).String() }

func (id WarpID) Compare(other WarpID) int { return Hash(id).Compare(Hash(other)) }
func (id WarpID) Less(other WarpID) bool   { return Hash(id).Less(Hash(other)) }
func (id WarpID) String() string           { return Hash(id).String() }

// Domain prefixes. These exact byte strings are part of the wire contract:
// changing any of them changes every id derived from it.
var (
	prefixNode = []byte("node:")
	prefixEdge = []byte("edge:")
	prefixType = []byte("type:")
	prefixWarp = []byte("warp:")
	prefixRule = []byte("rule:")
)

func domainHash(prefix []byte, label string) Hash {
	h := blake3.New(32, nil)
	h.Write(prefix)
	h.Write([]byte(label))
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// MakeNodeID derives a node identifier from label: BLAKE3("node:" || label).
func MakeNodeID(label string) NodeID { return NodeID(domainHash(prefixNode, label)) }

// MakeEdgeID derives an edge identifier from label: BLAKE3("edge:" || label).
func MakeEdgeID(label string) EdgeID { return EdgeID(domainHash(prefixEdge, label)) }

// MakeTypeID derives a type identifier from label: BLAKE3("type:" || label).
func MakeTypeID(label string) TypeID { return TypeID(domainHash(prefixType, label)) }

// MakeWarpID derives a warp identifier from label: BLAKE3("warp:" || label).
func MakeWarpID(label string) WarpID { return WarpID(domainHash(prefixWarp, label)) }

// MakeRuleID derives a rule identifier from its name: BLAKE3("rule:" || name).
// Used as RewriteRule.ID; telemetry and registries key on this, not on name.
func MakeRuleID(name string) Hash { return domainHash(prefixRule, name) }

// ScopeHash computes the scheduler's primary sort axis: BLAKE3(ruleID ||
// nodeID). It is recomputed on every apply() and is never cached across
// rule registrations because ruleID itself already commits to the rule.
func ScopeHash(ruleID Hash, scope NodeID) Hash {
	h := blake3.New(32, nil)
	h.Write(ruleID[:])
	h.Write(scope[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// CompactRuleID is a process-local, never-serialized identifier assigned to
// a rule at registration time. It exists purely to keep hot-path comparisons
// (scheduler dedupe keys, receipt entries) to 4 bytes instead of 32.
type CompactRuleID uint32

// NodeKey is an instance-scoped node identifier: a local NodeID namespaced
// by the WarpID of the instance it lives in. Two different warp instances
// may legally reuse the same local NodeID; NodeKey is what actually
// addresses a node uniquely across the whole multi-instance state.
type NodeKey struct {
	WarpID  WarpID
	LocalID NodeID
}

// Compare orders NodeKey first by WarpID, then by LocalID.
func (k NodeKey) Compare(other NodeKey) int {
	if c := k.WarpID.Compare(other.WarpID); c != 0 {
		return c
	}
	return k.LocalID.Compare(other.LocalID)
}

func (k NodeKey) Less(other NodeKey) bool { return k.Compare(other) < 0 }

// EdgeKey is an instance-scoped edge identifier, the edge analogue of NodeKey.
type EdgeKey struct {
	WarpID  WarpID
	LocalID EdgeID
}

func (k EdgeKey) Compare(other EdgeKey) int {
	if c := k.WarpID.Compare(other.WarpID); c != 0 {
		return c
	}
	return k.LocalID.Compare(other.LocalID)
}

func (k EdgeKey) Less(other EdgeKey) bool { return k.Compare(other) < 0 }

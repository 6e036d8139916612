package graph

import (
	"bytes"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// Equal reports whether op and other carry identical payloads — not just
// the same SortKey. Two ops can share a SortKey (same kind, same target)
// while disagreeing on payload; merge treats that as a genuine conflict
// rather than a duplicate, which is why dedup needs this rather than ==
// (WarpOp embeds []byte payloads, which aren't comparable with ==).
func (op WarpOp) Equal(other WarpOp) bool {
	if op.Kind != other.Kind {
		return false
	}
	switch op.Kind {
	case OpUpsertNode:
		return op.Node == other.Node &&
			op.Record.Type == other.Record.Type &&
			bytes.Equal(op.Record.Payload, other.Record.Payload)
	case OpDeleteNode:
		return op.Node == other.Node
	case OpUpsertEdge:
		return op.From == other.From &&
			op.Edge.ID == other.Edge.ID && op.Edge.Type == other.Edge.Type &&
			op.Edge.To == other.Edge.To &&
			bytes.Equal(op.Edge.Payload, other.Edge.Payload)
	case OpDeleteEdge:
		return op.From == other.From && op.EdgeID == other.EdgeID
	case OpSetAttachment:
		return op.Attachment == other.Attachment && attachmentValueEqual(op.Value, other.Value)
	case OpOpenPortal:
		return op.Portal.Kind == other.Portal.Kind &&
			op.Portal.Parent == other.Portal.Parent &&
			op.Portal.Child == other.Portal.Child
	case OpUpsertWarpInstance:
		return op.Instance == other.Instance
	case OpDeleteWarpInstance:
		return op.InstanceID == other.InstanceID
	default:
		return false
	}
}

func attachmentValueEqual(a, b AttachmentValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == AttachmentDescend {
		return a.Child == b.Child
	}
	return a.Atom.TypeID == b.Atom.TypeID && bytes.Equal(a.Atom.Bytes, b.Atom.Bytes)
}

// WarpOpKind discriminates the shape of mutation a WarpOp carries.
type WarpOpKind uint8

const (
	OpUpsertNode WarpOpKind = iota
	OpDeleteNode
	OpUpsertEdge
	OpDeleteEdge
	OpSetAttachment
	OpOpenPortal
	OpUpsertWarpInstance
	OpDeleteWarpInstance
)

// PortalInitKind discriminates whether an OpenPortal op creates a brand new
// child instance or attaches an already-existing one.
type PortalInitKind uint8

const (
	// PortalInitEmpty creates a fresh child warp instance with no prior
	// state — merge must reject any other op targeting it in the same
	// tick, since nothing could have legitimately observed it to write.
	PortalInitEmpty PortalInitKind = iota
	// PortalInitExisting attaches a child instance that already existed
	// before this tick; same-tick writes to it are ordinary conflicts,
	// not new-warp violations.
	PortalInitExisting
)

// PortalInit describes opening a descended attachment: the parent slot and
// the child instance it points into.
type PortalInit struct {
	Kind   PortalInitKind
	Parent AttachmentKey
	Child  WarpInstance
}

// WarpOp is a single mutation emitted by a rewrite executor: one of the
// eight shapes enumerated by WarpOpKind. Only the fields relevant to Kind
// are meaningful; this mirrors a Rust enum's payload variants using a tagged
// struct, the idiomatic Go substitute (see AttachmentValue for the same
// pattern).
type WarpOp struct {
	Kind WarpOpKind

	Node   ident.NodeKey
	Record NodeRecord

	From   ident.NodeKey
	Edge   EdgeRecord
	EdgeID ident.EdgeID

	Attachment AttachmentKey
	Value      AttachmentValue

	Portal PortalInit

	Instance   WarpInstance
	InstanceID ident.WarpID
}

// WarpOpKey is the canonical, byte-comparable sort key for a WarpOp: the
// discriminant followed by the identifying bytes of its primary target.
// Two ops with the same kind and target produce equal keys regardless of
// payload, by design — canonical merge treats same-key ops from different
// workers as either identical duplicates or a genuine conflict (see
// pkg/boaw.MergeDeltas), never as independently orderable.
type WarpOpKey [65]byte

// Compare orders WarpOpKey byte-lexicographically.
func (k WarpOpKey) Compare(other WarpOpKey) int { return bytes.Compare(k[:], other[:]) }

// SortKey computes op's canonical ordering key.
func (op WarpOp) SortKey() WarpOpKey {
	var key WarpOpKey
	key[0] = byte(op.Kind)
	switch op.Kind {
	case OpUpsertNode, OpDeleteNode:
		copy(key[1:33], op.Node.WarpID[:])
		copy(key[33:65], op.Node.LocalID[:])
	case OpUpsertEdge:
		copy(key[1:33], op.From.WarpID[:])
		edgeIDHash := ident.Hash(op.Edge.ID)
		copy(key[33:65], edgeIDHash[:])
	case OpDeleteEdge:
		copy(key[1:33], op.From.WarpID[:])
		edgeIDHash := ident.Hash(op.EdgeID)
		copy(key[33:65], edgeIDHash[:])
	case OpSetAttachment:
		ownerBytes := attachmentOwnerBytes(op.Attachment.Owner)
		copy(key[1:33], ownerBytes[:])
		key[33] = byte(op.Attachment.Plane)
	case OpOpenPortal:
		ownerBytes := attachmentOwnerBytes(op.Portal.Parent.Owner)
		copy(key[1:33], ownerBytes[:])
	case OpUpsertWarpInstance:
		copy(key[1:33], op.Instance.WarpID[:])
	case OpDeleteWarpInstance:
		copy(key[1:33], op.InstanceID[:])
	}
	return key
}

func attachmentOwnerBytes(owner AttachmentOwner) ident.Hash {
	if owner.Kind == OwnerNode {
		return ident.Hash(owner.Node.LocalID)
	}
	return ident.Hash(owner.Edge.LocalID)
}

// OpOrigin carries provenance metadata for an emitted op: which intent,
// rule, and match it came from, plus its position within a scoped emission.
// It participates in canonical merge as the tie-breaker alongside
// WarpOpKey, but is never part of the applied state itself.
type OpOrigin struct {
	IntentID uint64
	RuleID   uint32
	MatchIx  uint32
	OpIx     uint32
}

// Compare orders OpOrigin lexicographically over its fields, in the order
// they're declared — used as the secondary sort key after WarpOpKey.
func (o OpOrigin) Compare(other OpOrigin) int {
	switch {
	case o.IntentID != other.IntentID:
		return cmpUint64(o.IntentID, other.IntentID)
	case o.RuleID != other.RuleID:
		return cmpUint32(o.RuleID, other.RuleID)
	case o.MatchIx != other.MatchIx:
		return cmpUint32(o.MatchIx, other.MatchIx)
	default:
		return cmpUint32(o.OpIx, other.OpIx)
	}
}

func cmpUint64(a, b uint64) int {
	if a < b {
		return -1
	}
	return 1
}

func cmpUint32(a, b uint32) int {
	if a < b {
		return -1
	}
	return 1
}

// DeltaStats tallies how many ops of each kind a TickDelta has collected.
type DeltaStats struct {
	UpsertNode         int
	DeleteNode         int
	UpsertEdge         int
	DeleteEdge         int
	SetAttachment      int
	OpenPortal         int
	UpsertWarpInstance int
	DeleteWarpInstance int
}

// TickDelta accumulates the WarpOps a rewrite executor emits during a single
// apply, in insertion order, each optionally tagged with an OpOrigin.
// Finalize sorts them into canonical (SortKey, insertion index) order —
// the insertion index is the stable tie-breaker for ops that share a key.
type TickDelta struct {
	ops     []WarpOp
	origins []OpOrigin
}

// NewTickDelta creates an empty delta.
func NewTickDelta() *TickDelta { return &TickDelta{} }

// Emit appends op with a zero-value origin.
func (d *TickDelta) Emit(op WarpOp) { d.EmitWithOrigin(op, OpOrigin{}) }

// EmitWithOrigin appends op tagged with origin.
func (d *TickDelta) EmitWithOrigin(op WarpOp, origin OpOrigin) {
	d.ops = append(d.ops, op)
	d.origins = append(d.origins, origin)
}

// Len returns the number of collected operations.
func (d *TickDelta) Len() int { return len(d.ops) }

// IsEmpty reports whether no operations have been collected.
func (d *TickDelta) IsEmpty() bool { return len(d.ops) == 0 }

type indexedOp struct {
	op     WarpOp
	origin OpOrigin
	index  int
}

// Finalize returns the collected ops sorted by (SortKey, insertion index).
func (d *TickDelta) Finalize() []WarpOp {
	indexed := d.indexedOps()
	out := make([]WarpOp, len(indexed))
	for i, e := range indexed {
		out[i] = e.op
	}
	return out
}

// FinalizeWithOrigins is Finalize's counterpart for callers (BOAW merge)
// that need the origin tag alongside each canonically ordered op.
func (d *TickDelta) FinalizeWithOrigins() ([]WarpOp, []OpOrigin) {
	indexed := d.indexedOps()
	ops := make([]WarpOp, len(indexed))
	origins := make([]OpOrigin, len(indexed))
	for i, e := range indexed {
		ops[i] = e.op
		origins[i] = e.origin
	}
	return ops, origins
}

func (d *TickDelta) indexedOps() []indexedOp {
	indexed := make([]indexedOp, len(d.ops))
	for i, op := range d.ops {
		indexed[i] = indexedOp{op: op, origin: d.origins[i], index: i}
	}
	sortIndexedOps(indexed)
	return indexed
}

func sortIndexedOps(indexed []indexedOp) {
	// Insertion sort is adequate here: ticks emit a small, bounded number of
	// ops per scope, and this keeps the comparator simple and auditable.
	for i := 1; i < len(indexed); i++ {
		j := i
		for j > 0 && lessIndexedOp(indexed[j], indexed[j-1]) {
			indexed[j], indexed[j-1] = indexed[j-1], indexed[j]
			j--
		}
	}
}

func lessIndexedOp(a, b indexedOp) bool {
	if c := a.op.SortKey().Compare(b.op.SortKey()); c != 0 {
		return c < 0
	}
	return a.index < b.index
}

// IntoOpsUnsorted returns the collected ops in insertion order, with no
// canonical sort applied. Intended for tests asserting emission order.
func (d *TickDelta) IntoOpsUnsorted() []WarpOp { return append([]WarpOp(nil), d.ops...) }

// Stats tallies the collected ops by kind.
func (d *TickDelta) Stats() DeltaStats {
	var s DeltaStats
	for _, op := range d.ops {
		switch op.Kind {
		case OpUpsertNode:
			s.UpsertNode++
		case OpDeleteNode:
			s.DeleteNode++
		case OpUpsertEdge:
			s.UpsertEdge++
		case OpDeleteEdge:
			s.DeleteEdge++
		case OpSetAttachment:
			s.SetAttachment++
		case OpOpenPortal:
			s.OpenPortal++
		case OpUpsertWarpInstance:
			s.UpsertWarpInstance++
		case OpDeleteWarpInstance:
			s.DeleteWarpInstance++
		}
	}
	return s
}

// Scoped returns a ScopedDelta that tags every op emitted through it with
// origin, auto-incrementing OpIx per emission.
func (d *TickDelta) Scoped(origin OpOrigin) *ScopedDelta {
	return &ScopedDelta{inner: d, origin: origin}
}

// ScopedDelta applies one base OpOrigin to every op emitted through it,
// auto-assigning a monotonic OpIx so a rule executor emitting several ops in
// one call doesn't have to compute op indices by hand.
type ScopedDelta struct {
	inner    *TickDelta
	origin   OpOrigin
	nextOpIx uint32
}

// Emit appends op tagged with the scoped origin and the next op index.
func (s *ScopedDelta) Emit(op WarpOp) {
	origin := s.origin
	origin.OpIx = s.nextOpIx
	s.nextOpIx++
	s.inner.EmitWithOrigin(op, origin)
}

// Inner returns the underlying TickDelta.
func (s *ScopedDelta) Inner() *TickDelta { return s.inner }

package graph

import "github.com/flyingrobots/warp-core/pkg/ident"

// AttachmentPlane distinguishes two addressable attachment slots per owner.
// Rules commonly use the alpha plane for "current" state and reserve beta
// for double-buffered or staged state; the engine assigns no meaning to
// either beyond separating their footprints.
type AttachmentPlane uint8

const (
	PlaneAlpha AttachmentPlane = iota
	PlaneBeta
)

// AttachmentOwnerKind discriminates whether an AttachmentOwner addresses a
// node or an edge.
type AttachmentOwnerKind uint8

const (
	OwnerNode AttachmentOwnerKind = iota
	OwnerEdge
)

// AttachmentOwner is the entity an attachment hangs off: either an
// instance-scoped node or an instance-scoped edge, never both.
type AttachmentOwner struct {
	Kind AttachmentOwnerKind
	Node ident.NodeKey
	Edge ident.EdgeKey
}

// NodeOwner constructs an AttachmentOwner for a node key.
func NodeOwner(node ident.NodeKey) AttachmentOwner {
	return AttachmentOwner{Kind: OwnerNode, Node: node}
}

// EdgeOwner constructs an AttachmentOwner for an edge key.
func EdgeOwner(edge ident.EdgeKey) AttachmentOwner {
	return AttachmentOwner{Kind: OwnerEdge, Edge: edge}
}

func (o AttachmentOwner) compare(other AttachmentOwner) int {
	if o.Kind != other.Kind {
		if o.Kind < other.Kind {
			return -1
		}
		return 1
	}
	if o.Kind == OwnerNode {
		return o.Node.Compare(other.Node)
	}
	return o.Edge.Compare(other.Edge)
}

// AttachmentKey addresses one attachment slot: an owner plus a plane. It is
// the unit of conflict detection in the attachment footprint set (a_read/
// a_write): two rules touching the same AttachmentKey conflict, two rules
// touching different planes of the same owner do not.
type AttachmentKey struct {
	Owner AttachmentOwner
	Plane AttachmentPlane
}

// NodeAlpha constructs the alpha-plane attachment key for a node.
func NodeAlpha(node ident.NodeKey) AttachmentKey {
	return AttachmentKey{Owner: NodeOwner(node), Plane: PlaneAlpha}
}

// NodeBeta constructs the beta-plane attachment key for a node.
func NodeBeta(node ident.NodeKey) AttachmentKey {
	return AttachmentKey{Owner: NodeOwner(node), Plane: PlaneBeta}
}

// EdgeAlpha constructs the alpha-plane attachment key for an edge.
func EdgeAlpha(edge ident.EdgeKey) AttachmentKey {
	return AttachmentKey{Owner: EdgeOwner(edge), Plane: PlaneAlpha}
}

// EdgeBeta constructs the beta-plane attachment key for an edge.
func EdgeBeta(edge ident.EdgeKey) AttachmentKey {
	return AttachmentKey{Owner: EdgeOwner(edge), Plane: PlaneBeta}
}

// Compare orders AttachmentKey first by owner kind, then by the owner's key,
// then by plane. This is the canonical sort key used wherever attachments
// must be visited deterministically (snapshot hashing, footprint sets).
func (k AttachmentKey) Compare(other AttachmentKey) int {
	if c := k.Owner.compare(other.Owner); c != 0 {
		return c
	}
	if k.Plane != other.Plane {
		if k.Plane < other.Plane {
			return -1
		}
		return 1
	}
	return 0
}

func (k AttachmentKey) Less(other AttachmentKey) bool { return k.Compare(other) < 0 }

// AtomPayload is an inline, typed byte blob attached to a node or edge —
// the attachment-plane analogue of NodeRecord.Payload. TypeID identifies how
// to interpret Bytes (see pkg/payload for the motion encodings).
type AtomPayload struct {
	TypeID ident.TypeID
	Bytes  []byte
}

// AttachmentValueKind discriminates the two shapes an attachment can take.
type AttachmentValueKind uint8

const (
	// AttachmentAtom holds an inline typed payload.
	AttachmentAtom AttachmentValueKind = iota
	// AttachmentDescend points into a child warp instance (flattened
	// indirection: the owner's value "is" the root of another namespace
	// rather than inline data).
	AttachmentDescend
)

// AttachmentValue is the value stored at an AttachmentKey: either an inline
// AtomPayload or a descent into another WarpID's instance.
type AttachmentValue struct {
	Kind  AttachmentValueKind
	Atom  AtomPayload
	Child ident.WarpID
}

// AtomAttachment wraps an AtomPayload as an AttachmentValue.
func AtomAttachment(payload AtomPayload) AttachmentValue {
	return AttachmentValue{Kind: AttachmentAtom, Atom: payload}
}

// DescendAttachment constructs an AttachmentValue that descends into child.
func DescendAttachment(child ident.WarpID) AttachmentValue {
	return AttachmentValue{Kind: AttachmentDescend, Child: child}
}

package graph

import (
	"errors"
	"sort"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// Errors returned by Store's mutating operations.
var (
	ErrNodeExists   = errors.New("graph: node already exists")
	ErrNodeNotFound = errors.New("graph: node not found")
	ErrEdgeExists   = errors.New("graph: edge already exists")
	ErrEdgeNotFound = errors.New("graph: edge not found")
	// ErrDanglingEdge is returned when InsertEdge is asked to create an edge
	// whose source or destination node does not exist in the store. The
	// store never auto-creates endpoints.
	ErrDanglingEdge = errors.New("graph: edge endpoints must already exist")
)

// Store is the skeleton graph for a single WarpID namespace: nodes, their
// outbound edges, and an attachment plane, all addressed by instance-local
// ids. All exported iteration methods return slices sorted by ascending id —
// Go maps provide no iteration order, so this is the explicit substitute for
// the BTreeMap-backed determinism the reference implementation relies on.
type Store struct {
	warpID      ident.WarpID
	nodes       map[ident.NodeID]NodeRecord
	edgesFrom   map[ident.NodeID][]EdgeRecord
	attachments map[AttachmentKey]AttachmentValue
}

// NewStore creates an empty store namespaced by warpID.
func NewStore(warpID ident.WarpID) *Store {
	return &Store{
		warpID:      warpID,
		nodes:       make(map[ident.NodeID]NodeRecord),
		edgesFrom:   make(map[ident.NodeID][]EdgeRecord),
		attachments: make(map[AttachmentKey]AttachmentValue),
	}
}

// WarpID returns the instance namespace this store belongs to.
func (s *Store) WarpID() ident.WarpID { return s.warpID }

// Clone returns a deep copy of the store: mutating the clone (including its
// edge lists and attachment payload slices, which are copied rather than
// shared) never affects the original.
func (s *Store) Clone() *Store {
	out := NewStore(s.warpID)
	for id, rec := range s.nodes {
		rec.Payload = append([]byte(nil), rec.Payload...)
		out.nodes[id] = rec
	}
	for from, edges := range s.edgesFrom {
		cloned := make([]EdgeRecord, len(edges))
		for i, e := range edges {
			e.Payload = append([]byte(nil), e.Payload...)
			cloned[i] = e
		}
		out.edgesFrom[from] = cloned
	}
	for key, value := range s.attachments {
		if value.Kind == AttachmentAtom {
			value.Atom.Bytes = append([]byte(nil), value.Atom.Bytes...)
		}
		out.attachments[key] = value
	}
	return out
}

// Node returns the record for id and whether it exists.
func (s *Store) Node(id ident.NodeID) (NodeRecord, bool) {
	rec, ok := s.nodes[id]
	return rec, ok
}

// InsertNode adds a new node. It returns ErrNodeExists if id is already
// present — callers that want upsert semantics should RemoveNode first.
func (s *Store) InsertNode(id ident.NodeID, rec NodeRecord) error {
	if _, exists := s.nodes[id]; exists {
		return ErrNodeExists
	}
	s.nodes[id] = rec
	return nil
}

// SetNode upserts a node record unconditionally.
func (s *Store) SetNode(id ident.NodeID, rec NodeRecord) {
	s.nodes[id] = rec
}

// RemoveNode deletes a node, its outbound edge list, and any attachments
// hung off it (both planes). It returns ErrNodeNotFound if id is absent.
// It does not remove inbound edges from other nodes that still target id —
// callers are responsible for severing those first if that matters to them.
func (s *Store) RemoveNode(id ident.NodeID) error {
	if _, exists := s.nodes[id]; !exists {
		return ErrNodeNotFound
	}
	delete(s.nodes, id)
	delete(s.edgesFrom, id)
	key := ident.NodeKey{WarpID: s.warpID, LocalID: id}
	delete(s.attachments, NodeAlpha(key))
	delete(s.attachments, NodeBeta(key))
	return nil
}

// InsertEdge adds a directed edge from `from` to `edge.To`. Both endpoints
// must already exist (ErrDanglingEdge otherwise), and edge.ID must not
// already be present among from's outbound edges (ErrEdgeExists).
func (s *Store) InsertEdge(from ident.NodeID, edge EdgeRecord) error {
	if _, exists := s.nodes[from]; !exists {
		return ErrDanglingEdge
	}
	if _, exists := s.nodes[edge.To]; !exists {
		return ErrDanglingEdge
	}
	for _, existing := range s.edgesFrom[from] {
		if existing.ID == edge.ID {
			return ErrEdgeExists
		}
	}
	s.edgesFrom[from] = append(s.edgesFrom[from], edge)
	sort.Slice(s.edgesFrom[from], func(i, j int) bool {
		return s.edgesFrom[from][i].ID.Less(s.edgesFrom[from][j].ID)
	})
	return nil
}

// RemoveEdge deletes the edge identified by (from, edgeID). Returns
// ErrEdgeNotFound if no such edge exists.
func (s *Store) RemoveEdge(from ident.NodeID, edgeID ident.EdgeID) error {
	edges := s.edgesFrom[from]
	for i, e := range edges {
		if e.ID == edgeID {
			s.edgesFrom[from] = append(edges[:i], edges[i+1:]...)
			key := ident.EdgeKey{WarpID: s.warpID, LocalID: edgeID}
			delete(s.attachments, EdgeAlpha(key))
			delete(s.attachments, EdgeBeta(key))
			return nil
		}
	}
	return ErrEdgeNotFound
}

// EdgesFrom returns the outbound edges of node, sorted ascending by EdgeID.
// The returned slice is a copy; mutating it does not affect the store.
func (s *Store) EdgesFrom(node ident.NodeID) []EdgeRecord {
	edges := s.edgesFrom[node]
	out := make([]EdgeRecord, len(edges))
	copy(out, edges)
	return out
}

// SetAttachment upserts the value at key. Passing a zero-value
// AttachmentValue is a real write (AttachmentAtom with empty bytes), not a
// deletion — use RemoveAttachment to clear a slot.
func (s *Store) SetAttachment(key AttachmentKey, value AttachmentValue) {
	s.attachments[key] = value
}

// RemoveAttachment clears the value at key, if present.
func (s *Store) RemoveAttachment(key AttachmentKey) {
	delete(s.attachments, key)
}

// Attachment returns the value at key and whether it is present.
func (s *Store) Attachment(key AttachmentKey) (AttachmentValue, bool) {
	v, ok := s.attachments[key]
	return v, ok
}

// NodeAttachment is a convenience accessor for the alpha-plane attachment of
// a node — the common case used by most rewrite rules.
func (s *Store) NodeAttachment(node ident.NodeID) (AttachmentValue, bool) {
	return s.Attachment(NodeAlpha(ident.NodeKey{WarpID: s.warpID, LocalID: node}))
}

// SetNodeAttachment is the upsert counterpart of NodeAttachment.
func (s *Store) SetNodeAttachment(node ident.NodeID, value AttachmentValue) {
	s.SetAttachment(NodeAlpha(ident.NodeKey{WarpID: s.warpID, LocalID: node}), value)
}

// Nodes returns all node ids in the store, sorted ascending.
func (s *Store) Nodes() []ident.NodeID {
	ids := make([]ident.NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Attachments returns all attachment keys in the store, sorted per
// AttachmentKey.Compare.
func (s *Store) Attachments() []AttachmentKey {
	keys := make([]AttachmentKey, 0, len(s.attachments))
	for k := range s.attachments {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

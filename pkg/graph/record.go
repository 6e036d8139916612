// Package graph implements the per-warp-instance skeleton store: the
// in-memory node/edge/attachment planes a rewrite rule reads and writes
// within a single WarpID namespace, plus the WarpState wrapper that
// aggregates many such instances into one multi-warp world.
package graph

import "github.com/flyingrobots/warp-core/pkg/ident"

// NodeRecord is the data carried by a graph node: its type and an optional
// opaque payload blob. Payload is distinct from the attachment plane (see
// AttachmentValue) — it is the node's own inline state, hashed directly into
// the state root, whereas attachments are addressable by AttachmentKey and
// participate in footprint tracking.
type NodeRecord struct {
	Type    ident.TypeID
	Payload []byte
}

// EdgeRecord is a single outbound edge: its own id, type, destination node,
// and optional payload. Edges are stored per source node in ascending EdgeID
// order (see Store.EdgesFrom).
type EdgeRecord struct {
	ID      ident.EdgeID
	Type    ident.TypeID
	To      ident.NodeID
	Payload []byte
}

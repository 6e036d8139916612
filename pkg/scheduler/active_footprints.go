package scheduler

import (
	"encoding/binary"

	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

func hashNodeKey(k ident.NodeKey) uint64 {
	var buf [64]byte
	copy(buf[:32], k.WarpID[:])
	copy(buf[32:], k.LocalID[:])
	return xxHashBytes(buf[:])
}

func hashEdgeKey(k ident.EdgeKey) uint64 {
	var buf [64]byte
	copy(buf[:32], k.WarpID[:])
	copy(buf[32:], k.LocalID[:])
	return xxHashBytes(buf[:])
}

func hashAttachmentKey(k graph.AttachmentKey) uint64 {
	var buf [34]byte
	if k.Owner.Kind == graph.OwnerNode {
		buf[0] = 0
		copy(buf[1:33], k.Owner.Node.LocalID[:])
	} else {
		buf[0] = 1
		copy(buf[1:33], k.Owner.Edge.LocalID[:])
	}
	buf[33] = byte(k.Plane)
	return xxHashBytes(buf[:])
}

func hashPortKey(k footprint.PortKey) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	return xxHashBytes(buf[:])
}

// ActiveFootprints tracks, per resource class, every id reserved so far in
// the current tick — one GenSet per class, reset at the start of each tick
// via Reset rather than reallocated.
type ActiveFootprints struct {
	nodesWritten       *GenSet[ident.NodeKey]
	nodesRead          *GenSet[ident.NodeKey]
	edgesWritten       *GenSet[ident.EdgeKey]
	edgesRead          *GenSet[ident.EdgeKey]
	attachmentsWritten *GenSet[graph.AttachmentKey]
	attachmentsRead    *GenSet[graph.AttachmentKey]
	ports              *GenSet[footprint.PortKey]
}

// NewActiveFootprints constructs an empty tracker.
func NewActiveFootprints() *ActiveFootprints {
	return &ActiveFootprints{
		nodesWritten:       NewGenSet(hashNodeKey),
		nodesRead:          NewGenSet(hashNodeKey),
		edgesWritten:       NewGenSet(hashEdgeKey),
		edgesRead:          NewGenSet(hashEdgeKey),
		attachmentsWritten: NewGenSet(hashAttachmentKey),
		attachmentsRead:    NewGenSet(hashAttachmentKey),
		ports:              NewGenSet(hashPortKey),
	}
}

// Reset clears every resource class for the start of a new tick.
func (a *ActiveFootprints) Reset() {
	a.nodesWritten.Reset()
	a.nodesRead.Reset()
	a.edgesWritten.Reset()
	a.edgesRead.Reset()
	a.attachmentsWritten.Reset()
	a.attachmentsRead.Reset()
	a.ports.Reset()
}

// HasConflict reports whether pr's footprint conflicts with anything
// already reserved in a, applying the same rule Independent does: writes
// conflict with any prior touch, reads conflict only with prior writes,
// a port key conflicts with the same key reserved from either BIn or BOut.
func (a *ActiveFootprints) HasConflict(pr *PendingRewrite) bool {
	warpID := pr.Scope.WarpID

	for _, h := range pr.Footprint.NWrite.Ids() {
		key := ident.NodeKey{WarpID: warpID, LocalID: ident.NodeID(h)}
		if a.nodesWritten.Contains(key) || a.nodesRead.Contains(key) {
			return true
		}
	}
	for _, h := range pr.Footprint.NRead.Ids() {
		key := ident.NodeKey{WarpID: warpID, LocalID: ident.NodeID(h)}
		if a.nodesWritten.Contains(key) {
			return true
		}
	}

	for _, h := range pr.Footprint.EWrite.Ids() {
		key := ident.EdgeKey{WarpID: warpID, LocalID: ident.EdgeID(h)}
		if a.edgesWritten.Contains(key) || a.edgesRead.Contains(key) {
			return true
		}
	}
	for _, h := range pr.Footprint.ERead.Ids() {
		key := ident.EdgeKey{WarpID: warpID, LocalID: ident.EdgeID(h)}
		if a.edgesWritten.Contains(key) {
			return true
		}
	}

	for _, key := range pr.Footprint.AWrite.Keys() {
		if a.attachmentsWritten.Contains(key) || a.attachmentsRead.Contains(key) {
			return true
		}
	}
	for _, key := range pr.Footprint.ARead.Keys() {
		if a.attachmentsWritten.Contains(key) {
			return true
		}
	}

	for _, port := range pr.Footprint.BIn.Keys() {
		if a.ports.Contains(port) {
			return true
		}
	}
	for _, port := range pr.Footprint.BOut.Keys() {
		if a.ports.Contains(port) {
			return true
		}
	}

	return false
}

// MarkAll records every resource in pr's footprint as reserved.
func (a *ActiveFootprints) MarkAll(pr *PendingRewrite) {
	warpID := pr.Scope.WarpID

	for _, h := range pr.Footprint.NWrite.Ids() {
		a.nodesWritten.Mark(ident.NodeKey{WarpID: warpID, LocalID: ident.NodeID(h)})
	}
	for _, h := range pr.Footprint.NRead.Ids() {
		a.nodesRead.Mark(ident.NodeKey{WarpID: warpID, LocalID: ident.NodeID(h)})
	}
	for _, h := range pr.Footprint.EWrite.Ids() {
		a.edgesWritten.Mark(ident.EdgeKey{WarpID: warpID, LocalID: ident.EdgeID(h)})
	}
	for _, h := range pr.Footprint.ERead.Ids() {
		a.edgesRead.Mark(ident.EdgeKey{WarpID: warpID, LocalID: ident.EdgeID(h)})
	}
	for _, key := range pr.Footprint.AWrite.Keys() {
		a.attachmentsWritten.Mark(key)
	}
	for _, key := range pr.Footprint.ARead.Keys() {
		a.attachmentsRead.Mark(key)
	}
	for _, port := range pr.Footprint.BIn.Keys() {
		a.ports.Mark(port)
	}
	for _, port := range pr.Footprint.BOut.Keys() {
		a.ports.Mark(port)
	}
}

package footprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

func TestPackPortKeyLayout(t *testing.T) {
	node := ident.MakeNodeID("port-node")
	in := footprint.PackPortKey(node, 5, true)
	out := footprint.PackPortKey(node, 5, false)

	assert.NotEqual(t, in, out, "direction bit must distinguish in/out for the same port")
	assert.Equal(t, uint64(in)&1, uint64(1))
	assert.Equal(t, uint64(out)&1, uint64(0))
	assert.Equal(t, uint64(in)>>1, uint64(out)>>1, "fingerprint and port bits must match modulo direction")
}

func TestPackPortKeyStable(t *testing.T) {
	node := ident.MakeNodeID("stable-node")
	a := footprint.PackPortKey(node, 7, true)
	b := footprint.PackPortKey(node, 7, true)
	assert.Equal(t, a, b)
}

func TestIDSetIntersects(t *testing.T) {
	var a, b footprint.IDSet
	a.InsertNode(ident.MakeNodeID("shared"))
	a.InsertNode(ident.MakeNodeID("a-only"))
	b.InsertNode(ident.MakeNodeID("shared"))
	b.InsertNode(ident.MakeNodeID("b-only"))

	assert.True(t, a.Intersects(b))

	var c footprint.IDSet
	c.InsertNode(ident.MakeNodeID("disjoint"))
	assert.False(t, a.Intersects(c))
}

func TestIndependentReadReadNeverConflicts(t *testing.T) {
	node := ident.MakeNodeID("shared-read")
	var a, b footprint.Footprint
	a.NRead.InsertNode(node)
	b.NRead.InsertNode(node)

	assert.True(t, footprint.Independent(a, b))
}

func TestIndependentWriteWriteConflicts(t *testing.T) {
	node := ident.MakeNodeID("shared-write")
	var a, b footprint.Footprint
	a.NWrite.InsertNode(node)
	b.NWrite.InsertNode(node)

	assert.False(t, footprint.Independent(a, b))
}

func TestIndependentWriteReadConflicts(t *testing.T) {
	node := ident.MakeNodeID("shared-write-read")
	var a, b footprint.Footprint
	a.NWrite.InsertNode(node)
	b.NRead.InsertNode(node)

	assert.False(t, footprint.Independent(a, b))
	assert.False(t, footprint.Independent(b, a))
}

func TestIndependentAttachmentWriteConflicts(t *testing.T) {
	warp := ident.MakeWarpID("w")
	key := graph.NodeAlpha(ident.NodeKey{WarpID: warp, LocalID: ident.MakeNodeID("n")})

	var a, b footprint.Footprint
	a.AWrite.Insert(key)
	b.AWrite.Insert(key)

	assert.False(t, footprint.Independent(a, b))
}

func TestIndependentAttachmentDifferentPlanesDoNotConflict(t *testing.T) {
	warp := ident.MakeWarpID("w")
	node := ident.NodeKey{WarpID: warp, LocalID: ident.MakeNodeID("n")}

	var a, b footprint.Footprint
	a.AWrite.Insert(graph.NodeAlpha(node))
	b.AWrite.Insert(graph.NodeBeta(node))

	assert.True(t, footprint.Independent(a, b))
}

func TestIndependentPortAnyDirectionConflicts(t *testing.T) {
	node := ident.MakeNodeID("port-conflict")
	in := footprint.PackPortKey(node, 1, true)
	out := footprint.PackPortKey(node, 1, false)

	var a, b footprint.Footprint
	a.BIn.Insert(in)
	b.BOut.Insert(out)

	assert.True(t, footprint.Independent(a, b), "in and out keys of the same port differ in direction and should not conflict")

	var c, d footprint.Footprint
	c.BIn.Insert(in)
	d.BIn.Insert(in)
	assert.False(t, footprint.Independent(c, d))
}

func TestIndependentFactorMaskFastPath(t *testing.T) {
	var a, b footprint.Footprint
	a.FactorMask = 0b0001
	b.FactorMask = 0b0010

	node := ident.MakeNodeID("would-conflict")
	a.NWrite.InsertNode(node)
	b.NWrite.InsertNode(node)

	assert.True(t, footprint.Independent(a, b), "disjoint factor masks must short-circuit before the full check")
}

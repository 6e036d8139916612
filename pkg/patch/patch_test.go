package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/patch"
)

func sampleOps() []graph.WarpOp {
	warpID := ident.MakeWarpID("w")
	nodeType := ident.MakeTypeID("t")
	node := ident.NodeKey{WarpID: warpID, LocalID: ident.MakeNodeID("n1")}
	other := ident.NodeKey{WarpID: warpID, LocalID: ident.MakeNodeID("n2")}
	return []graph.WarpOp{
		{
			Kind:   graph.OpUpsertNode,
			Node:   node,
			Record: graph.NodeRecord{Type: nodeType, Payload: []byte{1, 2, 3, 4}},
		},
		{
			Kind: graph.OpUpsertEdge,
			From: node,
			Edge: graph.EdgeRecord{ID: ident.MakeEdgeID("e"), Type: nodeType, To: other.LocalID, Payload: []byte("hello")},
		},
		{
			Kind:       graph.OpSetAttachment,
			Attachment: graph.NodeAlpha(node),
			Value: graph.AtomAttachment(graph.AtomPayload{
				TypeID: nodeType,
				Bytes:  []byte{9, 9, 9},
			}),
		},
		{
			Kind:       graph.OpSetAttachment,
			Attachment: graph.NodeBeta(node),
			Value:      graph.DescendAttachment(ident.MakeWarpID("child")),
		},
		{
			Kind: graph.OpDeleteNode,
			Node: other,
		},
	}
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	ops := sampleOps()
	encoded := patch.Encode(ops)

	decoded, err := patch.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(ops))
	for i := range ops {
		assert.True(t, ops[i].Equal(decoded[i]), "op %d did not round-trip", i)
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	ops := sampleOps()
	a := patch.Digest(patch.Encode(ops))
	b := patch.Digest(patch.Encode(ops))
	assert.Equal(t, a, b)
}

func TestDigestChangesWithPayload(t *testing.T) {
	ops := sampleOps()
	a := patch.Digest(patch.Encode(ops))

	ops[0].Record.Payload = []byte{9, 9, 9, 9}
	b := patch.Digest(patch.Encode(ops))

	assert.NotEqual(t, a, b)
}

func TestEncodeEmptyOpsRoundTrips(t *testing.T) {
	encoded := patch.Encode(nil)
	decoded, err := patch.Decode(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	encoded := patch.Encode(sampleOps())
	_, err := patch.Decode(encoded[:len(encoded)/2])
	assert.Error(t, err)
}

package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

func TestApplyUpsertAndDeleteNode(t *testing.T) {
	warpID := ident.MakeWarpID("w")
	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, graph.NewStore(warpID))

	n := ident.MakeNodeID("n")
	nodeKey := ident.NodeKey{WarpID: warpID, LocalID: n}
	rec := graph.NodeRecord{Type: ident.MakeTypeID("t"), Payload: []byte("hello")}

	require.NoError(t, graph.Apply(state, []graph.WarpOp{{Kind: graph.OpUpsertNode, Node: nodeKey, Record: rec}}))

	store, ok := state.Store(warpID)
	require.True(t, ok)
	got, ok := store.Node(n)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	require.NoError(t, graph.Apply(state, []graph.WarpOp{{Kind: graph.OpDeleteNode, Node: nodeKey}}))
	_, ok = store.Node(n)
	assert.False(t, ok)
}

func TestApplyDeleteNodeAbsentIsNoop(t *testing.T) {
	warpID := ident.MakeWarpID("w")
	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, graph.NewStore(warpID))

	nodeKey := ident.NodeKey{WarpID: warpID, LocalID: ident.MakeNodeID("ghost")}
	assert.NoError(t, graph.Apply(state, []graph.WarpOp{{Kind: graph.OpDeleteNode, Node: nodeKey}}))
}

func TestApplyDanglingEdgeReturnsInvariantError(t *testing.T) {
	warpID := ident.MakeWarpID("w")
	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, graph.NewStore(warpID))

	op := graph.WarpOp{
		Kind: graph.OpUpsertEdge,
		From: ident.NodeKey{WarpID: warpID, LocalID: ident.MakeNodeID("missing")},
		Edge: graph.EdgeRecord{ID: ident.MakeEdgeID("e"), Type: ident.MakeTypeID("t"), To: ident.MakeNodeID("also-missing")},
	}
	err := graph.Apply(state, []graph.WarpOp{op})
	require.Error(t, err)

	var invariant *graph.ApplyInvariantError
	require.ErrorAs(t, err, &invariant)
	assert.Equal(t, op.SortKey(), invariant.Key)
	assert.ErrorIs(t, err, graph.ErrDanglingEdge)
}

func TestCloneIsolatesMutations(t *testing.T) {
	warpID := ident.MakeWarpID("w")
	store := graph.NewStore(warpID)
	n := ident.MakeNodeID("n")
	require.NoError(t, store.InsertNode(n, graph.NodeRecord{Type: ident.MakeTypeID("t"), Payload: []byte{1}}))

	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, store)

	clone := state.Clone()
	clonedStore, ok := clone.Store(warpID)
	require.True(t, ok)
	require.NoError(t, clonedStore.RemoveNode(n))
	clonedStore.SetNode(ident.MakeNodeID("extra"), graph.NodeRecord{Type: ident.MakeTypeID("t")})

	_, stillThere := store.Node(n)
	assert.True(t, stillThere, "removing a node from the clone must not touch the original")
	_, leaked := store.Node(ident.MakeNodeID("extra"))
	assert.False(t, leaked)
}

func TestApplyUpsertEdgeReplacesExisting(t *testing.T) {
	warpID := ident.MakeWarpID("w")
	store := graph.NewStore(warpID)
	from := ident.MakeNodeID("from")
	to1 := ident.MakeNodeID("to1")
	to2 := ident.MakeNodeID("to2")
	edgeID := ident.MakeEdgeID("e")
	edgeType := ident.MakeTypeID("t")
	require.NoError(t, store.InsertNode(from, graph.NodeRecord{Type: edgeType}))
	require.NoError(t, store.InsertNode(to1, graph.NodeRecord{Type: edgeType}))
	require.NoError(t, store.InsertNode(to2, graph.NodeRecord{Type: edgeType}))
	require.NoError(t, store.InsertEdge(from, graph.EdgeRecord{ID: edgeID, Type: edgeType, To: to1}))

	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, store)

	fromKey := ident.NodeKey{WarpID: warpID, LocalID: from}
	require.NoError(t, graph.Apply(state, []graph.WarpOp{{
		Kind: graph.OpUpsertEdge,
		From: fromKey,
		Edge: graph.EdgeRecord{ID: edgeID, Type: edgeType, To: to2},
	}}))

	edges := store.EdgesFrom(from)
	require.Len(t, edges, 1)
	assert.Equal(t, to2, edges[0].To)
}

func TestApplyDeleteEdge(t *testing.T) {
	warpID := ident.MakeWarpID("w")
	store := graph.NewStore(warpID)
	from := ident.MakeNodeID("from")
	to := ident.MakeNodeID("to")
	edgeID := ident.MakeEdgeID("e")
	edgeType := ident.MakeTypeID("t")
	require.NoError(t, store.InsertNode(from, graph.NodeRecord{Type: edgeType}))
	require.NoError(t, store.InsertNode(to, graph.NodeRecord{Type: edgeType}))
	require.NoError(t, store.InsertEdge(from, graph.EdgeRecord{ID: edgeID, Type: edgeType, To: to}))

	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, store)

	fromKey := ident.NodeKey{WarpID: warpID, LocalID: from}
	require.NoError(t, graph.Apply(state, []graph.WarpOp{{Kind: graph.OpDeleteEdge, From: fromKey, EdgeID: edgeID}}))
	assert.Empty(t, store.EdgesFrom(from))
}

func TestApplySetAttachment(t *testing.T) {
	warpID := ident.MakeWarpID("w")
	store := graph.NewStore(warpID)
	n := ident.MakeNodeID("n")
	require.NoError(t, store.InsertNode(n, graph.NodeRecord{Type: ident.MakeTypeID("t")}))

	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, store)

	nodeKey := ident.NodeKey{WarpID: warpID, LocalID: n}
	key := graph.NodeAlpha(nodeKey)
	value := graph.AtomAttachment(graph.AtomPayload{TypeID: ident.MakeTypeID("atom"), Bytes: []byte{1, 2, 3}})

	require.NoError(t, graph.Apply(state, []graph.WarpOp{{Kind: graph.OpSetAttachment, Attachment: key, Value: value}}))

	got, ok := store.Attachment(key)
	require.True(t, ok)
	assert.Equal(t, value, got)
}

func TestApplyOpenPortalCreatesChildAndDescendAttachment(t *testing.T) {
	parentWarp := ident.MakeWarpID("parent")
	childWarp := ident.MakeWarpID("child")
	parentStore := graph.NewStore(parentWarp)
	parentNode := ident.MakeNodeID("portal-node")
	require.NoError(t, parentStore.InsertNode(parentNode, graph.NodeRecord{Type: ident.MakeTypeID("t")}))

	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: parentWarp}, parentStore)

	parentKey := graph.NodeAlpha(ident.NodeKey{WarpID: parentWarp, LocalID: parentNode})
	childInstance := graph.WarpInstance{WarpID: childWarp, Parent: parentKey, HasParent: true}

	require.NoError(t, graph.Apply(state, []graph.WarpOp{{
		Kind: graph.OpOpenPortal,
		Portal: graph.PortalInit{
			Kind:   graph.PortalInitEmpty,
			Parent: parentKey,
			Child:  childInstance,
		},
	}}))

	attach, ok := parentStore.Attachment(parentKey)
	require.True(t, ok)
	assert.Equal(t, graph.AttachmentDescend, attach.Kind)
	assert.Equal(t, childWarp, attach.Child)

	childStore, ok := state.Store(childWarp)
	require.True(t, ok)
	assert.Equal(t, childWarp, childStore.WarpID())

	inst, ok := state.Instance(childWarp)
	require.True(t, ok)
	assert.True(t, inst.HasParent)
}

func TestApplyUpsertAndDeleteWarpInstance(t *testing.T) {
	state := graph.NewWarpState()
	warpID := ident.MakeWarpID("fresh")

	require.NoError(t, graph.Apply(state, []graph.WarpOp{{
		Kind:     graph.OpUpsertWarpInstance,
		Instance: graph.WarpInstance{WarpID: warpID, RootNode: ident.MakeNodeID("root")},
	}}))

	_, ok := state.Instance(warpID)
	require.True(t, ok)

	require.NoError(t, graph.Apply(state, []graph.WarpOp{{Kind: graph.OpDeleteWarpInstance, InstanceID: warpID}}))
	_, ok = state.Instance(warpID)
	assert.False(t, ok)
}

func TestApplyLazilyCreatesStoreForUntouchedWarpID(t *testing.T) {
	state := graph.NewWarpState()
	warpID := ident.MakeWarpID("never-declared")
	nodeKey := ident.NodeKey{WarpID: warpID, LocalID: ident.MakeNodeID("n")}

	require.NoError(t, graph.Apply(state, []graph.WarpOp{{
		Kind:   graph.OpUpsertNode,
		Node:   nodeKey,
		Record: graph.NodeRecord{Type: ident.MakeTypeID("t")},
	}}))

	store, ok := state.Store(warpID)
	require.True(t, ok)
	_, ok = store.Node(nodeKey.LocalID)
	assert.True(t, ok)
}

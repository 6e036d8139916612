package wsc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/warp-core/pkg/demo"
	"github.com/flyingrobots/warp-core/pkg/engine"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/payload"
	"github.com/flyingrobots/warp-core/pkg/scalar"
	"github.com/flyingrobots/warp-core/pkg/snapshot"
)

func insertMotionEntity(t *testing.T, store *graph.Store, id ident.NodeID) {
	t.Helper()
	require.NoError(t, store.InsertNode(id, graph.NodeRecord{Type: ident.MakeTypeID("entity")}))
	key := graph.NodeAlpha(ident.NodeKey{WarpID: store.WarpID(), LocalID: id})
	pos := [3]scalar.DFix64{scalar.DFix64FromF32(1), scalar.DFix64FromF32(2), scalar.DFix64FromF32(3)}
	vel := [3]scalar.DFix64{scalar.DFix64FromF32(0.5), scalar.DFix64FromF32(-1), scalar.DFix64FromF32(0.25)}
	store.SetAttachment(key, graph.AtomAttachment(payload.EncodeMotionAtomV2(pos, vel)))
}

func TestWriteParseRoundTripReproducesStateRoot(t *testing.T) {
	e := demo.BuildMotionDemoEngine()

	entity := ident.MakeNodeID("entity")
	insertMotionEntity(t, e.Store(), entity)

	tx := e.Begin()
	scope := ident.NodeKey{WarpID: e.Store().WarpID(), LocalID: entity}
	res, err := e.Apply(tx, demo.MotionRuleName, scope)
	require.NoError(t, err)
	require.Equal(t, engine.ResultApplied, res)

	snap, err := e.Commit(tx)
	require.NoError(t, err)

	schemaHash := ident.Hash(ident.MakeTypeID("wsc-test-schema"))
	buf := Write(e.State(), schemaHash, 1)

	hdr, state, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(1), hdr.Tick)
	require.Equal(t, schemaHash, hdr.SchemaHash)

	store, ok := state.Store(e.Store().WarpID())
	require.True(t, ok)

	reconstructedRoot := snapshot.ComputeStateRoot(store, demo.WorldRootNodeID)
	require.Equal(t, snap.StateRoot, reconstructedRoot)
}

func TestWriteFileLoadRoundTrip(t *testing.T) {
	e := demo.BuildMotionDemoEngine()
	entity := ident.MakeNodeID("entity")
	insertMotionEntity(t, e.Store(), entity)

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.wsc")
	schemaHash := ident.Hash(ident.MakeTypeID("wsc-test-schema"))
	require.NoError(t, WriteFile(path, e.State(), schemaHash, 42))

	hdr, state, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(42), hdr.Tick)

	store, ok := state.Store(e.Store().WarpID())
	require.True(t, ok)
	_, ok = store.Node(entity)
	require.True(t, ok)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.wsc")
	require.NoError(t, os.WriteFile(path, []byte("not a wsc file at all, long enough to pass the header length check"), 0o644))

	_, _, err := Load(path)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestParseRejectsTruncated(t *testing.T) {
	_, _, err := Parse([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrTruncated)
}

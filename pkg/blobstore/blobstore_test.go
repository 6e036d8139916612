package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

func TestPutGetSnapshotRoundTrip(t *testing.T) {
	store, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	commitHash := ident.Hash(ident.MakeTypeID("commit-1"))
	blob := []byte("wsc bytes for commit 1")

	require.NoError(t, store.PutSnapshot(commitHash, blob))

	got, err := store.GetSnapshot(context.Background(), commitHash)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestGetPatchNotFound(t *testing.T) {
	store, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetPatch(context.Background(), ident.Hash(ident.MakeTypeID("missing")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotAndPatchKeysDoNotCollide(t *testing.T) {
	store, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	commitHash := ident.Hash(ident.MakeTypeID("commit-2"))
	require.NoError(t, store.PutSnapshot(commitHash, []byte("snapshot-bytes")))
	require.NoError(t, store.PutPatch(commitHash, []byte("patch-bytes")))

	snap, err := store.GetSnapshot(context.Background(), commitHash)
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-bytes"), snap)

	patch, err := store.GetPatch(context.Background(), commitHash)
	require.NoError(t, err)
	require.Equal(t, []byte("patch-bytes"), patch)
}

// Package snapshot computes the canonical, architecture-independent hashes
// that bind a commit to its graph state: a state root over the reachable
// subgraph from a root node, and a commit hash that composes the state root
// with the tick's plan/decision/rewrites digests and parent history.
package snapshot

import (
	"encoding/binary"
	"sort"

	"lukechampine.com/blake3"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// Snapshot is the result of a successful commit: the canonical commit hash
// plus the metadata it was derived from.
type Snapshot struct {
	Root           ident.NodeID
	StateRoot      ident.Hash
	Hash           ident.Hash
	Parents        []ident.Hash
	PlanDigest     ident.Hash
	DecisionDigest ident.Hash
	RewritesDigest ident.Hash
	PatchDigest    ident.Hash
	PolicyID       uint32
	Tx             uint64
}

// ComputeStateRoot hashes the subgraph reachable from root via a
// deterministic breadth-first traversal of outbound edges: root's id, then
// every reachable node in ascending NodeID order (id, type, payload
// length+bytes, then both attachment planes), then every reachable node's
// outbound edges — filtered to edges whose destination is also reachable,
// sorted ascending by EdgeID — keyed by source node in ascending NodeID
// order, each edge followed by its own attachment planes.
//
// Attachment planes are hashed as length-prefixed canonical value bytes; an
// absent slot contributes a zero length, which no present value can alias
// (even an empty atom encodes its kind tag and type id). Rule state lives
// almost entirely in the attachment plane, so the state root must move when
// an attachment does.
//
// This is the graph-only digest; it never incorporates tick metadata (plan/
// decision/rewrites digests, parents, policy) — those are folded in by
// ComputeCommitHash.
func ComputeStateRoot(store *graph.Store, root ident.NodeID) ident.Hash {
	reachable := reachableFrom(store, root)

	h := blake3.New(32, nil)
	h.Write(root[:])

	for _, id := range store.Nodes() {
		if !reachable[id] {
			continue
		}
		rec, _ := store.Node(id)
		h.Write(id[:])
		h.Write(rec.Type[:])
		writeLenPrefixed(h, rec.Payload)
		nodeKey := ident.NodeKey{WarpID: store.WarpID(), LocalID: id}
		writeAttachmentSlot(h, store, graph.NodeAlpha(nodeKey))
		writeAttachmentSlot(h, store, graph.NodeBeta(nodeKey))
	}

	for _, from := range store.Nodes() {
		if !reachable[from] {
			continue
		}
		edges := store.EdgesFrom(from)
		var filtered []graph.EdgeRecord
		for _, e := range edges {
			if reachable[e.To] {
				filtered = append(filtered, e)
			}
		}
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID.Less(filtered[j].ID) })

		h.Write(from[:])
		var count [8]byte
		binary.LittleEndian.PutUint64(count[:], uint64(len(filtered)))
		h.Write(count[:])
		for _, e := range filtered {
			edgeIDHash := ident.Hash(e.ID)
			h.Write(edgeIDHash[:])
			h.Write(e.Type[:])
			h.Write(e.To[:])
			writeLenPrefixed(h, e.Payload)
			edgeKey := ident.EdgeKey{WarpID: store.WarpID(), LocalID: e.ID}
			writeAttachmentSlot(h, store, graph.EdgeAlpha(edgeKey))
			writeAttachmentSlot(h, store, graph.EdgeBeta(edgeKey))
		}
	}

	var out ident.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func writeLenPrefixed(h *blake3.Hasher, payload []byte) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	h.Write(lenBuf[:])
	if len(payload) > 0 {
		h.Write(payload)
	}
}

// writeAttachmentSlot hashes one attachment slot's canonical value bytes:
// kind tag then, for atoms, type id and payload, or, for descends, the child
// warp id. Absent slots hash as length zero.
func writeAttachmentSlot(h *blake3.Hasher, store *graph.Store, key graph.AttachmentKey) {
	value, ok := store.Attachment(key)
	if !ok {
		writeLenPrefixed(h, nil)
		return
	}
	var buf []byte
	if value.Kind == graph.AttachmentDescend {
		buf = make([]byte, 0, 33)
		buf = append(buf, byte(graph.AttachmentDescend))
		buf = append(buf, value.Child[:]...)
	} else {
		buf = make([]byte, 0, 33+len(value.Atom.Bytes))
		buf = append(buf, byte(graph.AttachmentAtom))
		buf = append(buf, value.Atom.TypeID[:]...)
		buf = append(buf, value.Atom.Bytes...)
	}
	writeLenPrefixed(h, buf)
}

// reachableFrom returns the set of node ids reachable from root via a BFS
// over outbound edges, root included.
func reachableFrom(store *graph.Store, root ident.NodeID) map[ident.NodeID]bool {
	reachable := map[ident.NodeID]bool{root: true}
	queue := []ident.NodeID{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range store.EdgesFrom(current) {
			if !reachable[e.To] {
				reachable[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return reachable
}

const commitHashVersion uint16 = 1

// ComputeCommitHash folds stateRoot together with parent hashes and the
// tick's plan/decision/rewrites digests and policy id into the final commit
// hash: version(2) ‖ parentCount(8) ‖ Σparents(32 each) ‖ stateRoot(32) ‖
// planDigest(32) ‖ decisionDigest(32) ‖ rewritesDigest(32) ‖ policyID(4),
// all little-endian.
func ComputeCommitHash(stateRoot ident.Hash, parents []ident.Hash, planDigest, decisionDigest, rewritesDigest ident.Hash, policyID uint32) ident.Hash {
	h := blake3.New(32, nil)

	var versionBuf [2]byte
	binary.LittleEndian.PutUint16(versionBuf[:], commitHashVersion)
	h.Write(versionBuf[:])

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(parents)))
	h.Write(countBuf[:])
	for _, p := range parents {
		h.Write(p[:])
	}

	h.Write(stateRoot[:])
	h.Write(planDigest[:])
	h.Write(decisionDigest[:])
	h.Write(rewritesDigest[:])

	var policyBuf [4]byte
	binary.LittleEndian.PutUint32(policyBuf[:], policyID)
	h.Write(policyBuf[:])

	var out ident.Hash
	copy(out[:], h.Sum(nil))
	return out
}

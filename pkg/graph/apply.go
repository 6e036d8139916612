package graph

import (
	"fmt"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// ApplyInvariantError reports an op that cannot be applied without breaking a
// store invariant — an UpsertEdge whose endpoint does not exist by the time
// the op's turn in the canonical order comes up. By the time ops reach Apply
// they have passed footprint reservation and merge conflict detection, so
// this indicates a bug in a rule's matcher or footprint declaration, not a
// condition the caller can recover from within the tick.
type ApplyInvariantError struct {
	Key WarpOpKey
	Err error
}

func (e *ApplyInvariantError) Error() string {
	return fmt.Sprintf("graph: apply op %x: %s", e.Key[:9], e.Err)
}

func (e *ApplyInvariantError) Unwrap() error { return e.Err }

// Apply mutates state in place according to ops, applying them in the order
// given — callers must supply canonically ordered ops (e.g. from
// pkg/boaw.MergeDeltas) so that applying from multiple independent callers
// with the same merged op set always produces the same resulting state.
//
// Apply stops at the first op that would violate a store invariant and
// returns an *ApplyInvariantError identifying it. State already mutated by
// earlier ops in the slice is left as-is — callers needing atomicity must
// validate against a Clone first (pkg/engine's commit path does exactly
// that before touching the live state).
func Apply(state *WarpState, ops []WarpOp) error {
	for _, op := range ops {
		if err := applyOne(state, op); err != nil {
			return &ApplyInvariantError{Key: op.SortKey(), Err: err}
		}
	}
	return nil
}

func applyOne(state *WarpState, op WarpOp) error {
	switch op.Kind {
	case OpUpsertNode:
		store := storeFor(state, op.Node.WarpID)
		store.SetNode(op.Node.LocalID, op.Record)

	case OpDeleteNode:
		store := storeFor(state, op.Node.WarpID)
		_ = store.RemoveNode(op.Node.LocalID)

	case OpUpsertEdge:
		store := storeFor(state, op.From.WarpID)
		_ = store.RemoveEdge(op.From.LocalID, op.Edge.ID)
		if err := store.InsertEdge(op.From.LocalID, op.Edge); err != nil {
			return err
		}

	case OpDeleteEdge:
		store := storeFor(state, op.From.WarpID)
		_ = store.RemoveEdge(op.From.LocalID, op.EdgeID)

	case OpSetAttachment:
		store := storeFor(state, attachmentOwnerWarpID(op.Attachment.Owner))
		store.SetAttachment(op.Attachment, op.Value)

	case OpOpenPortal:
		applyOpenPortal(state, op)

	case OpUpsertWarpInstance:
		store := state.TakeOrCreateStore(op.Instance.WarpID)
		state.UpsertInstance(op.Instance, store)

	case OpDeleteWarpInstance:
		state.DeleteInstance(op.InstanceID)
	}
	return nil
}

func applyOpenPortal(state *WarpState, op WarpOp) {
	parentWarpID := attachmentOwnerWarpID(op.Portal.Parent.Owner)
	parentStore := storeFor(state, parentWarpID)
	parentStore.SetAttachment(op.Portal.Parent, DescendAttachment(op.Portal.Child.WarpID))

	childStore := state.TakeOrCreateStore(op.Portal.Child.WarpID)
	state.UpsertInstance(op.Portal.Child, childStore)
}

func attachmentOwnerWarpID(owner AttachmentOwner) ident.WarpID {
	if owner.Kind == OwnerNode {
		return owner.Node.WarpID
	}
	return owner.Edge.WarpID
}

// storeFor returns the store for warpID, creating and registering an empty
// one (with a bare WarpInstance carrying no parent) if it does not yet
// exist — the root instance and any instance reached only via direct
// UpsertNode/UpsertEdge/SetAttachment ops (never an explicit OpenPortal or
// UpsertWarpInstance) both need this lazily-created path.
func storeFor(state *WarpState, warpID ident.WarpID) *Store {
	if s, ok := state.Store(warpID); ok {
		return s
	}
	store := NewStore(warpID)
	state.UpsertInstance(WarpInstance{WarpID: warpID}, store)
	return store
}

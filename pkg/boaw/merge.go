package boaw

import (
	"fmt"
	"sort"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// MergeConflict reports that two or more workers produced divergent ops for
// the same logical key — a footprint model violation, since independent
// footprints should never let two rewrites touch the same target in one
// tick.
type MergeConflict struct {
	Key     graph.WarpOpKey
	Writers []graph.OpOrigin
}

func (e *MergeConflict) Error() string {
	return fmt.Sprintf("boaw: merge conflict on key %x from %d writers", e.Key, len(e.Writers))
}

// WriteToNewWarpError reports an op that targets a warp instance created by
// an OpenPortal(Empty) op in the same tick — nothing could have legitimately
// observed that instance in time to write to it.
type WriteToNewWarpError struct {
	WarpID ident.WarpID
	Origin graph.OpOrigin
	OpKind string
}

func (e *WriteToNewWarpError) Error() string {
	return fmt.Sprintf("boaw: op %s targets newly created warp %x in the same tick", e.OpKind, e.WarpID)
}

type flatOp struct {
	key    graph.WarpOpKey
	origin graph.OpOrigin
	op     graph.WarpOp
}

// MergeDeltas merges per-worker deltas into one canonically ordered op
// slice. Ops are sorted by (WarpOpKey, OpOrigin); identical ops sharing a
// key are deduplicated, divergent ones return a MergeConflict. Any op
// targeting a warp instance created in the same tick via OpenPortal(Empty)
// returns a WriteToNewWarpError — conflicts and this check are both
// considered bugs in the footprint model that produced these deltas, not
// recoverable runtime conditions.
func MergeDeltas(deltas []*graph.TickDelta) ([]graph.WarpOp, error) {
	var flat []flatOp
	for _, d := range deltas {
		ops, origins := d.FinalizeWithOrigins()
		for i, op := range ops {
			flat = append(flat, flatOp{key: op.SortKey(), origin: origins[i], op: op})
		}
	}

	sort.Slice(flat, func(i, j int) bool {
		if c := flat[i].key.Compare(flat[j].key); c != 0 {
			return c < 0
		}
		return flat[i].origin.Compare(flat[j].origin) < 0
	})

	newWarps := collectNewWarps(flat)
	for _, f := range flat {
		warpID, kind, targets := extractTargetWarp(f.op)
		if !targets {
			continue
		}
		if _, created := newWarps[warpID]; created {
			return nil, &WriteToNewWarpError{WarpID: warpID, Origin: f.origin, OpKind: kind}
		}
	}

	out := make([]graph.WarpOp, 0, len(flat))
	i := 0
	for i < len(flat) {
		start := i
		key := flat[i].key
		for i < len(flat) && flat[i].key.Compare(key) == 0 {
			i++
		}
		first := flat[start].op
		allSame := true
		for _, f := range flat[start+1 : i] {
			if !f.op.Equal(first) {
				allSame = false
				break
			}
		}
		if !allSame {
			writers := make([]graph.OpOrigin, 0, i-start)
			for _, f := range flat[start:i] {
				writers = append(writers, f.origin)
			}
			return nil, &MergeConflict{Key: key, Writers: writers}
		}
		out = append(out, first)
	}
	return out, nil
}

// collectNewWarps returns the set of warp ids created in this tick via
// OpenPortal ops whose Init.Kind is PortalInitEmpty.
func collectNewWarps(flat []flatOp) map[ident.WarpID]struct{} {
	newWarps := make(map[ident.WarpID]struct{})
	for _, f := range flat {
		if f.op.Kind != graph.OpOpenPortal {
			continue
		}
		if f.op.Portal.Kind != graph.PortalInitEmpty {
			continue
		}
		newWarps[f.op.Portal.Child.WarpID] = struct{}{}
	}
	return newWarps
}

// extractTargetWarp returns the warp id an op targets, whether that op
// counts as a "write" for the new-warp check, and a human-readable kind
// label for error messages. OpenPortal itself creates the warp rather than
// writing to it, so it never targets.
func extractTargetWarp(op graph.WarpOp) (ident.WarpID, string, bool) {
	switch op.Kind {
	case graph.OpUpsertNode:
		return op.Node.WarpID, "UpsertNode", true
	case graph.OpDeleteNode:
		return op.Node.WarpID, "DeleteNode", true
	case graph.OpUpsertEdge:
		return op.From.WarpID, "UpsertEdge", true
	case graph.OpDeleteEdge:
		return op.From.WarpID, "DeleteEdge", true
	case graph.OpSetAttachment:
		owner := op.Attachment.Owner
		if owner.Kind == graph.OwnerNode {
			return owner.Node.WarpID, "SetAttachment", true
		}
		return owner.Edge.WarpID, "SetAttachment", true
	case graph.OpUpsertWarpInstance:
		return op.Instance.WarpID, "UpsertWarpInstance", true
	case graph.OpDeleteWarpInstance:
		return op.InstanceID, "DeleteWarpInstance", true
	default:
		return ident.WarpID{}, "", false
	}
}

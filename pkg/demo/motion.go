// Package demo holds built-in rewrite rules that exercise the engine's
// scheduler, BOAW execution, and materialization bus end to end, in the
// absence of any application-specific rule set.
package demo

import (
	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/payload"
	"github.com/flyingrobots/warp-core/pkg/rule"
	"github.com/flyingrobots/warp-core/pkg/scalar"
)

// MotionRuleName is the conventional name for the built-in motion update
// rule: advance a node's position by its velocity.
const MotionRuleName = "motion/update"

// MotionRuleID is the deterministic rule id for the motion update rule.
var MotionRuleID = ident.MakeRuleID(MotionRuleName)

// motionBackend selects the scalar arithmetic the motion executor advances
// with. The payload on disk is canonical Q32.32 either way; the backend
// only governs the domain the add happens in.
type motionBackend uint8

const (
	backendFixed motionBackend = iota
	backendF32
)

// motionMatcher fires on any node carrying a motion atom attachment, either
// the legacy v0 encoding or the canonical v2 encoding.
func motionMatcher(view graph.View, scope ident.NodeID) bool {
	attach, ok := view.NodeAttachment(scope)
	if !ok || attach.Kind != graph.AttachmentAtom {
		return false
	}
	if _, _, ok := payload.DecodeMotionAtomV2(attach.Atom); ok {
		return true
	}
	_, _, ok = payload.DecodeMotionAtomV0(attach.Atom)
	return ok
}

// motionExecutor builds the executor for the chosen backend. A legacy v0
// payload is upgraded to the canonical v2 encoding in place — NaN components
// collapse to zero and infinities saturate at the Q32.32 extremes — without
// advancing, so one tick migrates the payload and the next moves it. A v2
// payload advances position by velocity and re-encodes.
func motionExecutor(backend motionBackend) rule.ExecuteFunc {
	return func(view graph.View, scope ident.NodeID, delta *graph.TickDelta) {
		attach, ok := view.NodeAttachment(scope)
		if !ok || attach.Kind != graph.AttachmentAtom {
			return
		}

		position, velocity, ok := payload.DecodeMotionAtomV2(attach.Atom)
		if !ok {
			v0Pos, v0Vel, ok := payload.DecodeMotionAtomV0(attach.Atom)
			if !ok {
				return
			}
			for i := 0; i < 3; i++ {
				position[i] = scalar.DFix64FromF32(v0Pos[i])
				velocity[i] = scalar.DFix64FromF32(v0Vel[i])
			}
			emitMotion(view, scope, delta, position, velocity)
			return
		}

		for i := 0; i < 3; i++ {
			position[i] = advance(backend, position[i], velocity[i])
		}
		emitMotion(view, scope, delta, position, velocity)
	}
}

func advance(backend motionBackend, position, velocity scalar.DFix64) scalar.DFix64 {
	if backend == backendF32 {
		sum := scalar.NewF32Scalar(position.ToF32()).Add(scalar.NewF32Scalar(velocity.ToF32()))
		return scalar.DFix64FromF32(sum.ToF32())
	}
	return position.Add(velocity).(scalar.DFix64)
}

func emitMotion(view graph.View, scope ident.NodeID, delta *graph.TickDelta, position, velocity [3]scalar.DFix64) {
	nodeKey := ident.NodeKey{WarpID: view.WarpID(), LocalID: scope}
	delta.Emit(graph.WarpOp{
		Kind:       graph.OpSetAttachment,
		Attachment: graph.NodeAlpha(nodeKey),
		Value:      graph.AtomAttachment(payload.EncodeMotionAtomV2(position, velocity)),
	})
}

// computeMotionFootprint declares a single attachment-plane write over the
// scope node — motion never touches the node/edge planes.
func computeMotionFootprint(view graph.View, scope ident.NodeID) footprint.Footprint {
	var fp footprint.Footprint
	if _, ok := view.Node(scope); ok {
		fp.AWrite.Insert(graph.NodeAlpha(ident.NodeKey{WarpID: view.WarpID(), LocalID: scope}))
	}
	return fp
}

// MotionRule returns the built-in motion update rule advancing under
// deterministic Q32.32 fixed-point arithmetic, ready for registration with
// an engine.
func MotionRule() rule.RewriteRule {
	return motionRule(backendFixed)
}

// MotionRuleF32 is MotionRule with the advance computed in canonical-f32
// arithmetic instead of fixed point — the det_fixed=false configuration.
// The payload encoding stays canonical v2 Q32.32 either way. Register one
// or the other, never both: they share a name and id.
func MotionRuleF32() rule.RewriteRule {
	return motionRule(backendF32)
}

func motionRule(backend motionBackend) rule.RewriteRule {
	return rule.RewriteRule{
		ID:               MotionRuleID,
		Name:             MotionRuleName,
		Left:             rule.PatternGraph{},
		Matcher:          motionMatcher,
		Executor:         motionExecutor(backend),
		ComputeFootprint: computeMotionFootprint,
		ConflictPolicy:   rule.ConflictAbort,
	}
}

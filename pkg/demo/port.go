package demo

import (
	"encoding/binary"
	"fmt"

	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/rule"
)

// PortTouchPayloadTypeID tags the demo node record written by port-touch
// rules, so tests can distinguish it from motion nodes.
var PortTouchPayloadTypeID = ident.MakeTypeID("demo/port-touch")

// PortTouchRule builds a rule that declares a single inbound boundary port
// at the scope node and writes a one-byte marker recording which port fired.
// The marker record goes to a node derived from (scope, port), so two
// PortTouchRule instances with different port numbers targeting the same
// scope declare disjoint footprints, write disjoint nodes, and may both be
// admitted in the same tick regardless of apply order.
func PortTouchRule(name string, port uint32, marker byte) rule.RewriteRule {
	id := ident.MakeRuleID(name)
	markerNode := func(scope ident.NodeID) ident.NodeID {
		return ident.MakeNodeID(fmt.Sprintf("demo/port-touch/%x/%d", scope[:], port))
	}
	return rule.RewriteRule{
		ID:      id,
		Name:    name,
		Left:    rule.PatternGraph{},
		Matcher: func(graph.View, ident.NodeID) bool { return true },
		Executor: func(view graph.View, scope ident.NodeID, delta *graph.TickDelta) {
			var payload [5]byte
			binary.LittleEndian.PutUint32(payload[:4], port)
			payload[4] = marker
			delta.Emit(graph.WarpOp{
				Kind: graph.OpUpsertNode,
				Node: ident.NodeKey{WarpID: view.WarpID(), LocalID: markerNode(scope)},
				Record: graph.NodeRecord{
					Type:    PortTouchPayloadTypeID,
					Payload: payload[:],
				},
			})
		},
		ComputeFootprint: func(_ graph.View, scope ident.NodeID) footprint.Footprint {
			var fp footprint.Footprint
			fp.BIn.Insert(footprint.PackPortKey(scope, port, true))
			fp.NWrite.InsertNode(markerNode(scope))
			return fp
		},
		ConflictPolicy: rule.ConflictAbort,
	}
}

// Package materialization implements the side-channel emission bus: a
// confluence-safe way for rewrite rules to publish data (telemetry,
// snapshots, derived views) without that data becoming part of the graph
// state itself or influencing the commit hash's state root.
//
// Emissions are keyed by EmitKey, which is fully determined by execution
// context (scope hash, rule id, subkey) and never by scheduling order, so
// the finalized channel contents are identical regardless of which goroutine
// happened to run a rule first.
package materialization

import (
	"fmt"

	"lukechampine.com/blake3"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// ChannelID identifies a materialization channel. It is a domain-separated
// hash, distinct from ident.TypeID's own domain even though both are 32-byte
// BLAKE3 digests over a label.
type ChannelID = ident.TypeID

// MakeChannelID derives a channel id from a label: BLAKE3("channel:" ‖
// label). The "channel:" prefix keeps channel ids from colliding with type
// ids derived from the same label.
func MakeChannelID(label string) ChannelID {
	h := blake3.New(32, nil)
	h.Write([]byte("channel:"))
	h.Write([]byte(label))
	var out ident.Hash
	copy(out[:], h.Sum(nil))
	return ChannelID(out)
}

// ReduceOp names a commutative reduction applied to a channel's emissions in
// EmitKey order when that channel's policy is Reduce.
type ReduceOp int

const (
	// ReduceSum treats every emission's data as a little-endian u64 and
	// accumulates their sum, wrapping on overflow.
	ReduceSum ReduceOp = iota
	// ReduceFirst keeps only the lowest-EmitKey emission, discarding the
	// rest. Deterministic because EmitKey order is canonical.
	ReduceFirst
)

// ChannelPolicy governs how a channel resolves multiple emissions within a
// single tick into its finalized data.
//
// All policies preserve confluence: the finalized result never depends on
// the order rules actually ran in, only on EmitKey order. Policies that
// would silently pick a "winner" by execution order are not offered —
// StrictSingle exists specifically to catch that mistake instead of papering
// over it.
type ChannelPolicy struct {
	kind   channelPolicyKind
	reduce ReduceOp
}

type channelPolicyKind int

const (
	policyLog channelPolicyKind = iota
	policyStrictSingle
	policyReduce
)

// LogPolicy preserves every emission, concatenated in EmitKey order. This is
// the default: appropriate for event streams, logs, and any channel with
// multiple expected writers.
func LogPolicy() ChannelPolicy { return ChannelPolicy{kind: policyLog} }

// StrictSinglePolicy raises a ChannelConflict if more than one emission
// lands on the channel in a tick. Use it to enforce and catch violations of
// single-writer channels.
func StrictSinglePolicy() ChannelPolicy { return ChannelPolicy{kind: policyStrictSingle} }

// ReducePolicy merges emissions via op, applied in EmitKey order.
func ReducePolicy(op ReduceOp) ChannelPolicy {
	return ChannelPolicy{kind: policyReduce, reduce: op}
}

// MaterializationErrorKind classifies why a channel failed to finalize.
type MaterializationErrorKind int

const (
	// StrictSingleConflict: a StrictSinglePolicy channel received more than
	// one emission in the tick.
	StrictSingleConflict MaterializationErrorKind = iota
)

func (k MaterializationErrorKind) String() string {
	switch k {
	case StrictSingleConflict:
		return "strict single conflict"
	default:
		return "unknown materialization error"
	}
}

// ChannelConflict is raised when a channel's emissions cannot be resolved
// under its policy. It is deterministic: the same set of emissions always
// produces the same conflict.
type ChannelConflict struct {
	Channel       ChannelID
	EmissionCount int
	Kind          MaterializationErrorKind
}

func (e *ChannelConflict) Error() string {
	return fmt.Sprintf("channel %x failed: %s (%d emissions)", e.Channel[:4], e.Kind, e.EmissionCount)
}

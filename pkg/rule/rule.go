// Package rule defines the rewrite rule model: the callbacks a rule
// registers (match, execute, footprint) and the conflict policy governing
// what happens when independence fails.
package rule

import (
	"errors"

	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// PatternGraph describes the left-hand-side shape a rule expects, as an
// ordered list of type ids. Matchers are free to ignore it and decide purely
// from the scope node; it exists for rules whose match can be partially
// pre-filtered by type before the matcher ever runs.
type PatternGraph struct {
	Nodes []ident.TypeID
}

// MatchFunc decides whether a rule applies at scope, given a read-only view
// of the graph it would run against.
type MatchFunc func(view graph.View, scope ident.NodeID) bool

// ExecuteFunc applies a rule's rewrite at scope, recording every mutation
// into delta rather than touching the store directly — BOAW's parallel
// execution model depends on executors never writing through view.
type ExecuteFunc func(view graph.View, scope ident.NodeID, delta *graph.TickDelta)

// FootprintFunc computes the read/write footprint a rule's execution at
// scope would touch, used by the scheduler's independence check before the
// executor ever runs.
type FootprintFunc func(view graph.View, scope ident.NodeID) footprint.Footprint

// JoinFunc resolves a conflict between two rewrites under ConflictPolicy
// Join. Only relevant when a rule declares that policy; required to be
// non-nil in that case (see Validate).
type JoinFunc func(left, right ident.NodeID) bool

// ConflictPolicy governs what happens when a rewrite's footprint conflicts
// with another already-reserved rewrite in the same tick.
type ConflictPolicy uint8

const (
	// ConflictAbort drops the rewrite for this tick; it may be re-proposed
	// on a later tick once its scope matches again.
	ConflictAbort ConflictPolicy = iota
	// ConflictRetry re-matches the rule against the latest state before
	// giving up, rather than aborting outright.
	ConflictRetry
	// ConflictJoin invokes the rule's JoinFunc to attempt reconciliation.
	ConflictJoin
)

// RewriteRule is a registered rewrite: its identity, the pattern it
// documents, and the four callbacks that drive matching, footprint
// computation, and execution.
type RewriteRule struct {
	ID               ident.Hash
	Name             string
	Left             PatternGraph
	Matcher          MatchFunc
	Executor         ExecuteFunc
	ComputeFootprint FootprintFunc
	FactorMask       uint64
	ConflictPolicy   ConflictPolicy
	JoinFn           JoinFunc
}

// ErrJoinFnRequired is returned by Validate when ConflictPolicy is
// ConflictJoin but JoinFn is nil.
var ErrJoinFnRequired = errors.New("rule: ConflictJoin requires a non-nil JoinFn")

// ErrJoinFnUnused is returned by Validate when JoinFn is set but
// ConflictPolicy is not ConflictJoin — a rule shouldn't carry a join
// strategy it will never invoke, since that usually indicates the caller
// meant to set ConflictJoin and forgot.
var ErrJoinFnUnused = errors.New("rule: JoinFn is set but ConflictPolicy is not ConflictJoin")

// Validate checks the Join⇔JoinFn invariant: a rule declares ConflictJoin if
// and only if it supplies a JoinFn.
func (r RewriteRule) Validate() error {
	switch {
	case r.ConflictPolicy == ConflictJoin && r.JoinFn == nil:
		return ErrJoinFnRequired
	case r.ConflictPolicy != ConflictJoin && r.JoinFn != nil:
		return ErrJoinFnUnused
	default:
		return nil
	}
}

package rule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/rule"
)

func noopMatcher(graph.View, ident.NodeID) bool                  { return true }
func noopExecutor(graph.View, ident.NodeID, *graph.TickDelta)    {}
func noopFootprint(graph.View, ident.NodeID) footprint.Footprint { return footprint.Footprint{} }
func noopJoin(ident.NodeID, ident.NodeID) bool                   { return true }

func baseRule() rule.RewriteRule {
	return rule.RewriteRule{
		ID:               ident.MakeRuleID("test/rule"),
		Name:             "test/rule",
		Matcher:          noopMatcher,
		Executor:         noopExecutor,
		ComputeFootprint: noopFootprint,
		ConflictPolicy:   rule.ConflictAbort,
	}
}

func TestValidateAbortRequiresNoJoinFn(t *testing.T) {
	r := baseRule()
	assert.NoError(t, r.Validate())
}

func TestValidateJoinRequiresJoinFn(t *testing.T) {
	r := baseRule()
	r.ConflictPolicy = rule.ConflictJoin
	assert.ErrorIs(t, r.Validate(), rule.ErrJoinFnRequired)

	r.JoinFn = noopJoin
	assert.NoError(t, r.Validate())
}

func TestValidateRejectsUnusedJoinFn(t *testing.T) {
	r := baseRule()
	r.JoinFn = noopJoin
	assert.ErrorIs(t, r.Validate(), rule.ErrJoinFnUnused)
}

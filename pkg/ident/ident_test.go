package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainSeparation(t *testing.T) {
	const label = "entity"

	n := MakeNodeID(label)
	e := MakeEdgeID(label)
	ty := MakeTypeID(label)
	w := MakeWarpID(label)

	assert.NotEqual(t, Hash(n), Hash(e))
	assert.NotEqual(t, Hash(n), Hash(ty))
	assert.NotEqual(t, Hash(n), Hash(w))
	assert.NotEqual(t, Hash(e), Hash(ty))
	assert.NotEqual(t, Hash(e), Hash(w))
	assert.NotEqual(t, Hash(ty), Hash(w))
}

func TestMakeNodeIDDeterministic(t *testing.T) {
	require.Equal(t, MakeNodeID("x"), MakeNodeID("x"))
}

func TestScopeHashDependsOnBothInputs(t *testing.T) {
	rule1 := MakeRuleID("motion/update")
	rule2 := MakeRuleID("motion/other")
	scope := MakeNodeID("entity")

	assert.NotEqual(t, ScopeHash(rule1, scope), ScopeHash(rule2, scope))
	assert.Equal(t, ScopeHash(rule1, scope), ScopeHash(rule1, scope))
}

func TestHashOrdering(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, 0, a.Compare(a))
}

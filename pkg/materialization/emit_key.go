package materialization

import (
	"encoding/binary"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// EmitKey identifies a single emission within a tick. Its ordering —
// ScopeHash, then RuleID, then Subkey — is lexicographic and matches the
// scheduler's own canonical ordering, so finalization is deterministic
// regardless of the timing of the rule executions that produced it.
type EmitKey struct {
	ScopeHash ident.Hash
	RuleID    uint32
	Subkey    uint32
}

// NewEmitKey builds a key with Subkey 0, the common case of one emission per
// rule invocation.
func NewEmitKey(scopeHash ident.Hash, ruleID uint32) EmitKey {
	return EmitKey{ScopeHash: scopeHash, RuleID: ruleID}
}

// EmitKeyWithSubkey builds a key for a rule invocation that emits multiple
// items to the same channel, disambiguated by subkey.
func EmitKeyWithSubkey(scopeHash ident.Hash, ruleID, subkey uint32) EmitKey {
	return EmitKey{ScopeHash: scopeHash, RuleID: ruleID, Subkey: subkey}
}

// SubkeyFromHash truncates a hash to a u32 subkey, for rules that need a
// stable subkey per emitted item (e.g. a hash of the item's id). Collisions
// are acceptable; only determinism matters.
func SubkeyFromHash(h ident.Hash) uint32 {
	return binary.LittleEndian.Uint32(h[:4])
}

// Compare returns -1, 0, or 1 per the usual ordering contract.
func (k EmitKey) Compare(other EmitKey) int {
	if c := k.ScopeHash.Compare(other.ScopeHash); c != 0 {
		return c
	}
	if k.RuleID != other.RuleID {
		if k.RuleID < other.RuleID {
			return -1
		}
		return 1
	}
	if k.Subkey != other.Subkey {
		if k.Subkey < other.Subkey {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether k sorts strictly before other.
func (k EmitKey) Less(other EmitKey) bool { return k.Compare(other) < 0 }

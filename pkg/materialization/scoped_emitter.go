package materialization

import "github.com/flyingrobots/warp-core/pkg/ident"

// ScopedEmitter is the EmissionPort the engine constructs for each rule
// invocation. It binds the invocation's scope hash and rule id so the
// resulting EmitKey is always correct — rule code supplies only a channel
// and a payload.
type ScopedEmitter struct {
	bus       *Bus
	scopeHash ident.Hash
	ruleID    uint32
}

// NewScopedEmitter binds a fresh emitter to bus for one rule invocation at
// scopeHash.
func NewScopedEmitter(bus *Bus, scopeHash ident.Hash, ruleID uint32) *ScopedEmitter {
	return &ScopedEmitter{bus: bus, scopeHash: scopeHash, ruleID: ruleID}
}

// ScopeHash returns the scope this emitter is bound to.
func (e *ScopedEmitter) ScopeHash() ident.Hash { return e.scopeHash }

// RuleID returns the rule this emitter is bound to.
func (e *ScopedEmitter) RuleID() uint32 { return e.ruleID }

// Emit implements EmissionPort.
func (e *ScopedEmitter) Emit(channel ChannelID, data []byte) error {
	return e.bus.Emit(channel, NewEmitKey(e.scopeHash, e.ruleID), data)
}

// EmitWithSubkey implements EmissionPort.
func (e *ScopedEmitter) EmitWithSubkey(channel ChannelID, subkey uint32, data []byte) error {
	return e.bus.Emit(channel, EmitKeyWithSubkey(e.scopeHash, e.ruleID, subkey), data)
}

var _ EmissionPort = (*ScopedEmitter)(nil)

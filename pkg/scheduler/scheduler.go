package scheduler

import (
	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// TxID identifies a transaction the scheduler tracks pending rewrites and
// active footprints for.
type TxID uint64

// RewritePhase tracks a pending rewrite's progress through the scheduler's
// state machine.
type RewritePhase uint8

const (
	PhaseMatched RewritePhase = iota
	PhaseReserved
	PhaseCommitted
	PhaseAborted
)

// PendingRewrite is a candidate rewrite waiting to be drained and reserved.
type PendingRewrite struct {
	RuleID      ident.Hash
	CompactRule ident.CompactRuleID
	ScopeHash   ident.Hash
	Scope       ident.NodeKey
	Footprint   footprint.Footprint
	Phase       RewritePhase

	nonce uint32
}

// pendingKey is the last-wins dedupe key: re-enqueuing the same rule at the
// same scope replaces the previous pending entry rather than queuing both.
type pendingKey struct {
	scopeHash   ident.Hash
	compactRule ident.CompactRuleID
}

type pendingTx struct {
	byKey     map[pendingKey]*PendingRewrite
	nextNonce uint32
}

// RadixScheduler is the deterministic per-tick rewrite scheduler: an O(1)
// enqueue with last-wins dedupe, an O(n) radix-sorted drain, and generation-
// stamped active-footprint tracking for reservation.
type RadixScheduler struct {
	pending map[TxID]*pendingTx
	active  map[TxID]*ActiveFootprints
}

// NewRadixScheduler constructs an empty scheduler.
func NewRadixScheduler() *RadixScheduler {
	return &RadixScheduler{
		pending: make(map[TxID]*pendingTx),
		active:  make(map[TxID]*ActiveFootprints),
	}
}

// Enqueue adds rewrite to tx's pending set. If a rewrite already exists for
// the same (ScopeHash, CompactRule), it is replaced — last-wins — and the
// replacement is assigned a fresh nonce.
func (s *RadixScheduler) Enqueue(tx TxID, rewrite PendingRewrite) {
	txq, ok := s.pending[tx]
	if !ok {
		txq = &pendingTx{byKey: make(map[pendingKey]*PendingRewrite)}
		s.pending[tx] = txq
	}
	rewrite.nonce = txq.nextNonce
	txq.nextNonce++
	key := pendingKey{scopeHash: rewrite.ScopeHash, compactRule: rewrite.CompactRule}
	txq.byKey[key] = &rewrite
}

// DrainForTx removes and returns every pending rewrite for tx, ordered
// ascending by (ScopeHash, CompactRule, nonce) via radixSort.
func (s *RadixScheduler) DrainForTx(tx TxID) []*PendingRewrite {
	txq, ok := s.pending[tx]
	if !ok {
		return nil
	}
	delete(s.pending, tx)

	items := make([]*PendingRewrite, 0, len(txq.byKey))
	for _, pr := range txq.byKey {
		items = append(items, pr)
	}
	radixSort(items)
	return items
}

// Reserve attempts to reserve pr against tx's active footprints. On
// success it marks every resource pr touches and sets pr.Phase to
// PhaseReserved, returning true. On conflict it sets pr.Phase to
// PhaseAborted and returns false — the only rejection reason this scheduler
// currently distinguishes; a future caller needing finer-grained rejection
// reasons should widen this return type rather than overload it.
func (s *RadixScheduler) Reserve(tx TxID, pr *PendingRewrite) bool {
	active, ok := s.active[tx]
	if !ok {
		active = NewActiveFootprints()
		s.active[tx] = active
	}

	if active.HasConflict(pr) {
		pr.Phase = PhaseAborted
		return false
	}

	active.MarkAll(pr)
	pr.Phase = PhaseReserved
	return true
}

// FinalizeTx clears all pending and active-footprint state for tx.
func (s *RadixScheduler) FinalizeTx(tx TxID) {
	delete(s.pending, tx)
	delete(s.active, tx)
}

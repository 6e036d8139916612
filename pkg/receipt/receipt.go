// Package receipt implements the per-tick disposition ledger: one entry per
// candidate rewrite the scheduler considered, recording whether it was
// applied or rejected, plus the canonical digest of that ledger that feeds
// into the commit hash.
package receipt

import (
	"encoding/binary"

	"lukechampine.com/blake3"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// Disposition is the outcome of one candidate rewrite's reservation attempt.
type Disposition uint8

const (
	// Applied means the rewrite reserved successfully and ran.
	Applied Disposition = 1
	// RejectedFootprintConflict means the rewrite's footprint conflicted
	// with an already-reserved rewrite this tick.
	RejectedFootprintConflict Disposition = 2
)

// Entry is one candidate rewrite's recorded outcome.
type Entry struct {
	RuleID      ident.Hash
	ScopeHash   ident.Hash
	Scope       ident.NodeKey
	Disposition Disposition

	// BlockedBy holds the indices of earlier entries whose reservation
	// caused this one to conflict. Tracked for diagnostics only — per
	// spec, blocking indices are never part of the digest.
	BlockedBy []int
}

// TickReceipt is the ordered ledger of every candidate rewrite considered
// during one tick's commit, in the same canonical order the scheduler
// drained them in.
type TickReceipt struct {
	Entries []Entry
}

const receiptVersion uint16 = 2

// Digest computes the receipt's canonical hash: version(2) ‖ count(8) ‖
// per-entry (ruleID(32) ‖ scopeHash(32) ‖ scope.WarpID(32) ‖
// scope.LocalID(32) ‖ dispositionByte(1)), all little-endian, BLAKE3'd.
// BlockedBy is deliberately excluded — it is diagnostic metadata, not part
// of the tick's deterministic outcome.
func (r TickReceipt) Digest() ident.Hash {
	h := blake3.New(32, nil)

	var versionBuf [2]byte
	binary.LittleEndian.PutUint16(versionBuf[:], receiptVersion)
	h.Write(versionBuf[:])

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(r.Entries)))
	h.Write(countBuf[:])

	for _, e := range r.Entries {
		h.Write(e.RuleID[:])
		h.Write(e.ScopeHash[:])
		h.Write(e.Scope.WarpID[:])
		h.Write(e.Scope.LocalID[:])
		h.Write([]byte{byte(e.Disposition)})
	}

	var out ident.Hash
	copy(out[:], h.Sum(nil))
	return out
}

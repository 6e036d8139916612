package receipt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/receipt"
)

func sampleEntry(tag byte, d receipt.Disposition) receipt.Entry {
	var h ident.Hash
	h[31] = tag
	return receipt.Entry{
		RuleID:      h,
		ScopeHash:   h,
		Scope:       ident.NodeKey{WarpID: ident.MakeWarpID("w"), LocalID: ident.NodeID(h)},
		Disposition: d,
	}
}

func TestDigestDeterministic(t *testing.T) {
	r := receipt.TickReceipt{Entries: []receipt.Entry{
		sampleEntry(1, receipt.Applied),
		sampleEntry(2, receipt.RejectedFootprintConflict),
	}}
	a := r.Digest()
	b := r.Digest()
	assert.Equal(t, a, b)
}

func TestDigestSensitiveToDisposition(t *testing.T) {
	applied := receipt.TickReceipt{Entries: []receipt.Entry{sampleEntry(1, receipt.Applied)}}
	rejected := receipt.TickReceipt{Entries: []receipt.Entry{sampleEntry(1, receipt.RejectedFootprintConflict)}}
	assert.NotEqual(t, applied.Digest(), rejected.Digest())
}

func TestDigestIgnoresBlockedBy(t *testing.T) {
	withBlocks := sampleEntry(1, receipt.RejectedFootprintConflict)
	withBlocks.BlockedBy = []int{0, 2, 5}
	withoutBlocks := sampleEntry(1, receipt.RejectedFootprintConflict)

	a := receipt.TickReceipt{Entries: []receipt.Entry{withBlocks}}.Digest()
	b := receipt.TickReceipt{Entries: []receipt.Entry{withoutBlocks}}.Digest()
	assert.Equal(t, a, b)
}

func TestDigestSensitiveToCount(t *testing.T) {
	one := receipt.TickReceipt{Entries: []receipt.Entry{sampleEntry(1, receipt.Applied)}}
	two := receipt.TickReceipt{Entries: []receipt.Entry{sampleEntry(1, receipt.Applied), sampleEntry(2, receipt.Applied)}}
	assert.NotEqual(t, one.Digest(), two.Digest())
}

func TestEmptyReceiptDigestIsStable(t *testing.T) {
	a := receipt.TickReceipt{}.Digest()
	b := receipt.TickReceipt{}.Digest()
	assert.Equal(t, a, b)
}

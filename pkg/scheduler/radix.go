package scheduler

// radixPasses is the pass count for the LSD radix sort over a pending
// rewrite's (nonce, compact rule id, scope hash) key: 2 passes of 16 bits
// for the 32-bit nonce, 2 for the 32-bit compact rule id, and 16 for the
// 256-bit (32-byte) scope hash — 20 total, each a comparison-free counting
// sort over a 16-bit digit.
const radixPasses = 20

const radixBuckets = 1 << 16

// digitAt extracts the 16-bit digit for pass p (0 = least significant) from
// pr's sort key. Passes 0-1 cover the nonce, 2-3 the compact rule id, and
// 4-19 the scope hash from its last byte pair toward its first — the last
// pass (19) covers scopeHash[0:2], so it runs last and therefore dominates
// the final order, giving ascending byte-lexicographic order over the full
// hash as the primary sort axis.
func digitAt(pr *PendingRewrite, p int) uint16 {
	switch {
	case p == 0:
		return uint16(pr.nonce)
	case p == 1:
		return uint16(pr.nonce >> 16)
	case p == 2:
		return uint16(pr.CompactRule)
	case p == 3:
		return uint16(pr.CompactRule >> 16)
	default:
		i := p - 4
		idx := 30 - 2*i
		return uint16(pr.ScopeHash[idx])<<8 | uint16(pr.ScopeHash[idx+1])
	}
}

// radixSort stably sorts items in place by ascending (scope hash, compact
// rule id, nonce), via radixPasses counting-sort passes. Each pass is O(n +
// radixBuckets); the whole sort is O(n) for any n large relative to the
// fixed bucket count, with no key comparisons.
func radixSort(items []*PendingRewrite) {
	if len(items) < 2 {
		return
	}
	buf := make([]*PendingRewrite, len(items))
	src, dst := items, buf

	var counts [radixBuckets + 1]int
	for p := 0; p < radixPasses; p++ {
		for i := range counts {
			counts[i] = 0
		}
		for _, item := range src {
			counts[digitAt(item, p)+1]++
		}
		for i := 1; i <= radixBuckets; i++ {
			counts[i] += counts[i-1]
		}
		for _, item := range src {
			d := digitAt(item, p)
			dst[counts[d]] = item
			counts[d]++
		}
		src, dst = dst, src
	}
	// After an even number of passes, src holds the final order at items'
	// original backing slice iff radixPasses is even; copy defensively so
	// callers always see the sorted result in items regardless of parity.
	copy(items, src)
}

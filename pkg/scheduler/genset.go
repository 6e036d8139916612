// Package scheduler implements the deterministic rewrite scheduler: a
// per-transaction pending queue with last-wins dedupe, an O(n) radix drain
// over (scope hash, rule id, nonce), and generation-stamped active-footprint
// sets for O(1)-amortized independence checking during reservation.
package scheduler

import "github.com/cespare/xxhash/v2"

// GenSet is a generation-stamped membership set: Contains/Mark are O(1)
// amortized via open addressing, and Reset is O(1) — it just bumps the
// current generation rather than walking the table, so a slot's prior
// occupant is implicitly "empty" again the moment the generation advances
// past the one it was marked with. This is the scheduler's O(1)-per-resource
// substitute for clearing a HashSet between ticks.
type GenSet[K comparable] struct {
	hash  func(K) uint64
	slots []genSlot[K]
	mask  uint64
	gen   uint64
	count int
}

type genSlot[K comparable] struct {
	key K
	gen uint64
}

const genSetInitialCap = 256

// NewGenSet constructs an empty GenSet using hash to place keys.
func NewGenSet[K comparable](hash func(K) uint64) *GenSet[K] {
	return &GenSet[K]{
		hash:  hash,
		slots: make([]genSlot[K], genSetInitialCap),
		mask:  genSetInitialCap - 1,
		gen:   1,
	}
}

// Reset clears the set in O(1) by advancing the generation. On the
// exceedingly unlikely event of a uint64 generation wraparound, it falls
// back to a real clear so stale slots from generation 0 can't be mistaken
// for current.
func (s *GenSet[K]) Reset() {
	s.gen++
	s.count = 0
	if s.gen == 0 {
		for i := range s.slots {
			s.slots[i] = genSlot[K]{}
		}
		s.gen = 1
	}
}

// Contains reports whether key was marked in the current generation.
func (s *GenSet[K]) Contains(key K) bool {
	idx := s.hash(key) & s.mask
	for {
		slot := &s.slots[idx]
		if slot.gen != s.gen {
			return false
		}
		if slot.key == key {
			return true
		}
		idx = (idx + 1) & s.mask
	}
}

// Mark records key as present in the current generation.
func (s *GenSet[K]) Mark(key K) {
	if (s.count+1)*4 > len(s.slots)*3 {
		s.grow()
	}
	idx := s.hash(key) & s.mask
	for {
		slot := &s.slots[idx]
		if slot.gen != s.gen {
			slot.key = key
			slot.gen = s.gen
			s.count++
			return
		}
		if slot.key == key {
			return
		}
		idx = (idx + 1) & s.mask
	}
}

func (s *GenSet[K]) grow() {
	oldSlots := s.slots
	oldGen := s.gen
	newCap := len(oldSlots) * 2
	s.slots = make([]genSlot[K], newCap)
	s.mask = uint64(newCap) - 1
	s.count = 0
	for _, slot := range oldSlots {
		if slot.gen != oldGen {
			continue
		}
		idx := s.hash(slot.key) & s.mask
		for s.slots[idx].gen == s.gen {
			idx = (idx + 1) & s.mask
		}
		s.slots[idx] = genSlot[K]{key: slot.key, gen: s.gen}
		s.count++
	}
}

// xxHashBytes hashes b with xxhash — the shared primitive every concrete
// GenSet instantiation in this package builds its key hasher from.
func xxHashBytes(b []byte) uint64 { return xxhash.Sum64(b) }

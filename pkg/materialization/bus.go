package materialization

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// DuplicateEmission is returned by Bus.Emit when a rule invocation emits
// twice under the same (channel, EmitKey) pair — almost always a rule bug
// (e.g. iterating a map without a stable per-item subkey).
type DuplicateEmission struct {
	Channel ChannelID
	Key     EmitKey
}

func (e *DuplicateEmission) Error() string {
	return fmt.Sprintf("materialization: duplicate emission on channel %x for key %+v", e.Channel[:4], e.Key)
}

// FinalizedChannel is one channel's resolved data after Bus.Finalize.
type FinalizedChannel struct {
	Channel ChannelID
	Data    []byte
}

type emission struct {
	key  EmitKey
	data []byte
}

// Bus collects rule emissions over the course of a single tick and, once the
// tick's rewrites have all executed, resolves each channel's emissions into
// a single finalized payload according to that channel's ChannelPolicy.
//
// Bus is safe for concurrent Emit calls from parallel rule execution; the
// resolution order in Finalize depends only on EmitKey, never on the order
// Emit was actually called in.
type Bus struct {
	mu        sync.Mutex
	policies  map[ChannelID]ChannelPolicy
	emissions map[ChannelID][]emission
	seen      map[ChannelID]map[EmitKey]struct{}
}

// NewBus constructs an empty bus. Channels default to LogPolicy unless
// registered otherwise via RegisterChannel.
func NewBus() *Bus {
	return &Bus{
		policies:  make(map[ChannelID]ChannelPolicy),
		emissions: make(map[ChannelID][]emission),
		seen:      make(map[ChannelID]map[EmitKey]struct{}),
	}
}

// RegisterChannel sets the finalization policy for channel. Channels that
// are never registered use LogPolicy.
func (b *Bus) RegisterChannel(channel ChannelID, policy ChannelPolicy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policies[channel] = policy
}

// Emit records a single emission. Only ScopedEmitter should call this
// directly — it is exported so other EmissionPort implementations (tests,
// mocks) can drive the same bus.
func (b *Bus) Emit(channel ChannelID, key EmitKey, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dup, ok := b.seen[channel]
	if !ok {
		dup = make(map[EmitKey]struct{})
		b.seen[channel] = dup
	}
	if _, exists := dup[key]; exists {
		return &DuplicateEmission{Channel: channel, Key: key}
	}
	dup[key] = struct{}{}

	cp := append([]byte(nil), data...)
	b.emissions[channel] = append(b.emissions[channel], emission{key: key, data: cp})
	return nil
}

// Finalize resolves every channel that received at least one emission this
// tick into its policy-determined output, in ascending ChannelID order.
// Resolution failures (StrictSingle conflicts) are collected and returned
// together as a single error; channels that resolved successfully are still
// present in the returned slice.
func (b *Bus) Finalize() ([]FinalizedChannel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channels := make([]ChannelID, 0, len(b.emissions))
	for ch := range b.emissions {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Less(channels[j]) })

	var out []FinalizedChannel
	var conflicts []error

	for _, ch := range channels {
		ems := b.emissions[ch]
		sort.Slice(ems, func(i, j int) bool { return ems[i].key.Less(ems[j].key) })

		policy, ok := b.policies[ch]
		if !ok {
			policy = LogPolicy()
		}

		data, err := resolveChannel(ch, policy, ems)
		if err != nil {
			conflicts = append(conflicts, err)
			continue
		}
		out = append(out, FinalizedChannel{Channel: ch, Data: data})
	}

	if len(conflicts) > 0 {
		return out, conflictError(conflicts)
	}
	return out, nil
}

// Reset clears all accumulated emissions, preparing the bus for the next
// tick. Registered policies are preserved.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emissions = make(map[ChannelID][]emission)
	b.seen = make(map[ChannelID]map[EmitKey]struct{})
}

func resolveChannel(ch ChannelID, policy ChannelPolicy, ems []emission) ([]byte, error) {
	switch policy.kind {
	case policyStrictSingle:
		if len(ems) > 1 {
			return nil, &ChannelConflict{Channel: ch, EmissionCount: len(ems), Kind: StrictSingleConflict}
		}
		if len(ems) == 0 {
			return nil, nil
		}
		return ems[0].data, nil

	case policyReduce:
		return reduceEmissions(policy.reduce, ems), nil

	default: // policyLog
		return encodeLog(ems), nil
	}
}

// encodeLog concatenates every emission as a u32LE length prefix followed by
// its data, in EmitKey order.
func encodeLog(ems []emission) []byte {
	var out []byte
	var lenBuf [4]byte
	for _, e := range ems {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e.data)))
		out = append(out, lenBuf[:]...)
		out = append(out, e.data...)
	}
	return out
}

func reduceEmissions(op ReduceOp, ems []emission) []byte {
	if len(ems) == 0 {
		return nil
	}
	switch op {
	case ReduceFirst:
		return ems[0].data

	default: // ReduceSum
		var sum uint64
		for _, e := range ems {
			sum += decodeU64LE(e.data)
		}
		var out [8]byte
		binary.LittleEndian.PutUint64(out[:], sum)
		return out[:]
	}
}

// decodeU64LE reads up to 8 little-endian bytes from data, zero-extending a
// shorter input.
func decodeU64LE(data []byte) uint64 {
	var buf [8]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint64(buf[:])
}

type multiChannelConflict struct {
	conflicts []error
}

func conflictError(conflicts []error) error {
	return &multiChannelConflict{conflicts: conflicts}
}

func (e *multiChannelConflict) Error() string {
	if len(e.conflicts) == 1 {
		return e.conflicts[0].Error()
	}
	return fmt.Sprintf("materialization: %d channels failed to finalize (first: %s)", len(e.conflicts), e.conflicts[0])
}

func (e *multiChannelConflict) Unwrap() []error { return e.conflicts }

package payload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/warp-core/pkg/payload"
	"github.com/flyingrobots/warp-core/pkg/scalar"
)

func TestMotionV0RoundTrip(t *testing.T) {
	position := [3]float32{1.5, -2.25, 0}
	velocity := [3]float32{0.125, 4, -8.5}

	m := payload.MotionV0{Position: position, Velocity: velocity}
	raw := m.Bytes()
	require.Len(t, raw, 24)

	got, ok := payload.ParseMotionV0(raw)
	require.True(t, ok)
	assert.Equal(t, position, got.Position)
	assert.Equal(t, velocity, got.Velocity)
}

func TestMotionV0RejectsWrongLength(t *testing.T) {
	_, ok := payload.ParseMotionV0([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestMotionAtomV0RoundTrip(t *testing.T) {
	position := [3]float32{1, 2, 3}
	velocity := [3]float32{4, 5, 6}

	atom := payload.EncodeMotionAtomV0(position, velocity)
	assert.Equal(t, payload.MotionPayloadTypeIDV0, atom.TypeID)

	gotPos, gotVel, ok := payload.DecodeMotionAtomV0(atom)
	require.True(t, ok)
	assert.Equal(t, position, gotPos)
	assert.Equal(t, velocity, gotVel)
}

func TestMotionAtomV0RejectsTypeMismatch(t *testing.T) {
	atom := payload.EncodeMotionAtomV2(
		[3]scalar.DFix64{},
		[3]scalar.DFix64{},
	)
	_, _, ok := payload.DecodeMotionAtomV0(atom)
	assert.False(t, ok)
}

func TestMotionV2RoundTrip(t *testing.T) {
	position := [3]scalar.DFix64{
		scalar.DFix64FromF32(1.5),
		scalar.DFix64FromF32(-2.25),
		scalar.DFix64FromRaw(0),
	}
	velocity := [3]scalar.DFix64{
		scalar.DFix64FromF32(0.5),
		scalar.DFix64FromRaw(scalar.OneRaw),
		scalar.DFix64FromF32(-8.5),
	}

	m := payload.MotionV2{Position: position, Velocity: velocity}
	raw := m.Bytes()
	require.Len(t, raw, 48)

	got, ok := payload.ParseMotionV2(raw)
	require.True(t, ok)
	assert.Equal(t, position, got.Position)
	assert.Equal(t, velocity, got.Velocity)
}

func TestMotionV2RejectsWrongLength(t *testing.T) {
	_, ok := payload.ParseMotionV2(make([]byte, 47))
	assert.False(t, ok)
}

func TestMotionAtomV2RoundTrip(t *testing.T) {
	position := [3]scalar.DFix64{scalar.DFix64FromRaw(1), scalar.DFix64FromRaw(2), scalar.DFix64FromRaw(3)}
	velocity := [3]scalar.DFix64{scalar.DFix64FromRaw(4), scalar.DFix64FromRaw(5), scalar.DFix64FromRaw(6)}

	atom := payload.EncodeMotionAtomV2(position, velocity)
	assert.Equal(t, payload.MotionPayloadTypeIDV2, atom.TypeID)

	gotPos, gotVel, ok := payload.DecodeMotionAtomV2(atom)
	require.True(t, ok)
	assert.Equal(t, position, gotPos)
	assert.Equal(t, velocity, gotVel)
}

func TestMotionAtomV2RejectsTypeMismatch(t *testing.T) {
	atom := payload.EncodeMotionAtomV0([3]float32{}, [3]float32{})
	_, _, ok := payload.DecodeMotionAtomV2(atom)
	assert.False(t, ok)
}

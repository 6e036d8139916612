// Package payload implements the canonical motion demo payload encodings:
// a legacy v0 raw-float32 layout and a canonical v2 Q32.32 fixed-point
// layout, both addressable as typed attachment atoms.
package payload

import (
	"encoding/binary"
	"math"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/scalar"
)

// AtomView is a zero-copy typed view over an attachment payload's bytes: a
// type tag plus the raw wire representation, with construction left to each
// payload kind's own Parse function rather than a shared generic decoder.
type AtomView interface {
	TypeID() ident.TypeID
	Bytes() []byte
}

// motionV0Bytes is the fixed size of the legacy raw-f32 motion payload:
// three f32 position components followed by three f32 velocity components.
const motionV0Bytes = 24

// motionV2Bytes is the fixed size of the canonical Q32.32 motion payload:
// three int64 position components followed by three int64 velocity
// components, each 8 bytes little-endian.
const motionV2Bytes = 48

// MotionPayloadTypeIDV0 is the attachment-plane TypeID for the legacy
// raw-float32 motion payload encoding.
var MotionPayloadTypeIDV0 = ident.MakeTypeID("payload/motion/v0")

// MotionPayloadTypeIDV2 is the attachment-plane TypeID for the canonical
// Q32.32 fixed-point motion payload encoding.
var MotionPayloadTypeIDV2 = ident.MakeTypeID("payload/motion/v2")

// MotionV0 is the legacy raw-f32 motion payload view: position and velocity
// as three IEEE-754 float32 components each, little-endian, 24 bytes total.
// Values are encoded verbatim — callers wanting deterministic cross-platform
// behavior should canonicalize through scalar.F32Scalar first, or prefer
// MotionV2.
type MotionV0 struct {
	Position [3]float32
	Velocity [3]float32
}

// TypeID implements AtomView.
func (MotionV0) TypeID() ident.TypeID { return MotionPayloadTypeIDV0 }

// Bytes implements AtomView, encoding position then velocity as six
// little-endian f32 values.
func (m MotionV0) Bytes() []byte {
	buf := make([]byte, 0, motionV0Bytes)
	for _, v := range m.Position {
		buf = appendF32(buf, v)
	}
	for _, v := range m.Velocity {
		buf = appendF32(buf, v)
	}
	return buf
}

func appendF32(buf []byte, v float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return append(buf, b[:]...)
}

// ParseMotionV0 decodes a 24-byte legacy motion payload. It returns
// ok=false if raw is not exactly motionV0Bytes long.
func ParseMotionV0(raw []byte) (MotionV0, bool) {
	var m MotionV0
	if len(raw) != motionV0Bytes {
		return m, false
	}
	for i := 0; i < 3; i++ {
		m.Position[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	for i := 0; i < 3; i++ {
		off := 12 + i*4
		m.Velocity[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off : off+4]))
	}
	return m, true
}

// EncodeMotionAtomV0 wraps a legacy motion payload as a typed attachment
// atom.
func EncodeMotionAtomV0(position, velocity [3]float32) graph.AtomPayload {
	m := MotionV0{Position: position, Velocity: velocity}
	return graph.AtomPayload{TypeID: m.TypeID(), Bytes: m.Bytes()}
}

// DecodeMotionAtomV0 unwraps a typed attachment atom back into position and
// velocity, failing if the atom's TypeID does not match
// MotionPayloadTypeIDV0 or its bytes are malformed.
func DecodeMotionAtomV0(atom graph.AtomPayload) (position, velocity [3]float32, ok bool) {
	if atom.TypeID != MotionPayloadTypeIDV0 {
		return position, velocity, false
	}
	m, ok := ParseMotionV0(atom.Bytes)
	return m.Position, m.Velocity, ok
}

// MotionV2 is the canonical Q32.32 fixed-point motion payload view:
// position and velocity as three scalar.DFix64 components each,
// little-endian raw int64, 48 bytes total. This is the deterministic
// encoding new rules should prefer over MotionV0.
type MotionV2 struct {
	Position [3]scalar.DFix64
	Velocity [3]scalar.DFix64
}

// TypeID implements AtomView.
func (MotionV2) TypeID() ident.TypeID { return MotionPayloadTypeIDV2 }

// Bytes implements AtomView, encoding position then velocity as six
// little-endian Q32.32 raw int64 values.
func (m MotionV2) Bytes() []byte {
	buf := make([]byte, 0, motionV2Bytes)
	for _, v := range m.Position {
		buf = appendI64(buf, v.Raw())
	}
	for _, v := range m.Velocity {
		buf = appendI64(buf, v.Raw())
	}
	return buf
}

func appendI64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

// ParseMotionV2 decodes a 48-byte canonical motion payload. It returns
// ok=false if raw is not exactly motionV2Bytes long.
func ParseMotionV2(raw []byte) (MotionV2, bool) {
	var m MotionV2
	if len(raw) != motionV2Bytes {
		return m, false
	}
	for i := 0; i < 3; i++ {
		off := i * 8
		raw64 := int64(binary.LittleEndian.Uint64(raw[off : off+8]))
		m.Position[i] = scalar.DFix64FromRaw(raw64)
	}
	for i := 0; i < 3; i++ {
		off := 24 + i*8
		raw64 := int64(binary.LittleEndian.Uint64(raw[off : off+8]))
		m.Velocity[i] = scalar.DFix64FromRaw(raw64)
	}
	return m, true
}

// EncodeMotionAtomV2 wraps a canonical motion payload as a typed attachment
// atom.
func EncodeMotionAtomV2(position, velocity [3]scalar.DFix64) graph.AtomPayload {
	m := MotionV2{Position: position, Velocity: velocity}
	return graph.AtomPayload{TypeID: m.TypeID(), Bytes: m.Bytes()}
}

// DecodeMotionAtomV2 unwraps a typed attachment atom back into position and
// velocity, failing if the atom's TypeID does not match
// MotionPayloadTypeIDV2 or its bytes are malformed.
func DecodeMotionAtomV2(atom graph.AtomPayload) (position, velocity [3]scalar.DFix64, ok bool) {
	if atom.TypeID != MotionPayloadTypeIDV2 {
		return position, velocity, false
	}
	m, ok := ParseMotionV2(atom.Bytes)
	return m.Position, m.Velocity, ok
}

package scalar

import (
	"math"
	"strconv"
)

// canonicalQuietNaNBits is the single bit pattern every NaN collapses to:
// 0x7FC00000, a positive quiet NaN.
const canonicalQuietNaNBits uint32 = 0x7FC0_0000

// F32Scalar is a canonicalized IEEE-754 float32. Construction normalizes
// away the three sources of platform/representation instability that IEEE
// float32 otherwise permits:
//
//   - every NaN bit pattern collapses to the single canonical quiet NaN
//   - subnormals flush to +0.0
//   - -0.0 normalizes to +0.0
//
// Infinities are preserved and remain distinguishable from NaN. Because of
// this canonicalization, F32Scalar values can be compared bit-for-bit (Ord,
// via total ordering on the underlying bits) without the usual IEEE
// NaN-is-unordered wrinkle.
type F32Scalar struct {
	value float32
}

// F32Zero is the canonical +0.0 F32Scalar.
var F32Zero = F32Scalar{value: 0}

// F32One is the canonical 1.0 F32Scalar.
var F32One = F32Scalar{value: 1}

// NewF32Scalar constructs a canonicalized F32Scalar from a raw float32.
func NewF32Scalar(num float32) F32Scalar {
	switch {
	case isNaN32(num):
		return F32Scalar{value: math.Float32frombits(canonicalQuietNaNBits)}
	case isSubnormal32(num):
		return F32Scalar{value: 0}
	default:
		// num + 0 canonicalizes -0.0 to +0.0 under IEEE round-to-nearest.
		return F32Scalar{value: num + 0}
	}
}

func isNaN32(f float32) bool {
	return f != f
}

func isSubnormal32(f float32) bool {
	if f == 0 {
		return false
	}
	bits := math.Float32bits(f)
	exp := (bits >> 23) & 0xFF
	mant := bits & 0x7FFFFF
	return exp == 0 && mant != 0
}

// Bits returns the raw IEEE-754 bit pattern of the canonicalized value.
func (s F32Scalar) Bits() uint32 { return math.Float32bits(s.value) }

// Compare implements a total order consistent with total_cmp semantics:
// canonical NaN sorts as the single largest positive value class, distinct
// from +Inf, and values otherwise compare by IEEE magnitude/sign.
func (s F32Scalar) Compare(other F32Scalar) int {
	ai, bi := totalOrderKey(s.value), totalOrderKey(other.value)
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

// totalOrderKey maps float32 bits to a signed integer domain that sorts in
// the same order as IEEE 754's totalOrder predicate: for non-negative
// values the bit pattern sorts correctly as-is; for negative values the
// ordering must be reversed (more negative bit patterns are "more negative"
// values, so they must produce smaller keys).
func totalOrderKey(f float32) int64 {
	bits := int64(int32(math.Float32bits(f)))
	if bits >= 0 {
		return bits
	}
	return bits ^ 0x7FFFFFFF
}

func (s F32Scalar) Equal(other F32Scalar) bool { return s.Compare(other) == 0 }
func (s F32Scalar) Less(other F32Scalar) bool  { return s.Compare(other) < 0 }

func (s F32Scalar) String() string { return floatString(s.value) }

// ToF32 returns the underlying value for interop and diagnostics.
func (s F32Scalar) ToF32() float32 { return s.value }

// F32FromF32 is the Scalar-interface boundary-crossing constructor.
func F32FromF32(value float32) F32Scalar { return NewF32Scalar(value) }

func (s F32Scalar) Add(other Scalar) Scalar {
	return NewF32Scalar(s.value + other.(F32Scalar).value)
}

func (s F32Scalar) Sub(other Scalar) Scalar {
	return NewF32Scalar(s.value - other.(F32Scalar).value)
}

func (s F32Scalar) Mul(other Scalar) Scalar {
	return NewF32Scalar(s.value * other.(F32Scalar).value)
}

func (s F32Scalar) Div(other Scalar) Scalar {
	return NewF32Scalar(s.value / other.(F32Scalar).value)
}

func (s F32Scalar) Neg() Scalar {
	return NewF32Scalar(-s.value)
}

func (s F32Scalar) Sin() Scalar {
	sv, _ := sinCosF32(s.value)
	return NewF32Scalar(sv)
}

func (s F32Scalar) Cos() Scalar {
	_, cv := sinCosF32(s.value)
	return NewF32Scalar(cv)
}

func (s F32Scalar) SinCos() (Scalar, Scalar) {
	sv, cv := sinCosF32(s.value)
	return NewF32Scalar(sv), NewF32Scalar(cv)
}

func floatString(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

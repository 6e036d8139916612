package scalar

import "math/bits"

// FracBits is the number of fractional bits in the Q32.32 encoding.
const FracBits = 32

// OneRaw is the raw Q32.32 integer corresponding to 1.0.
const OneRaw int64 = 1 << FracBits

// DFix64 is a deterministic Q32.32 signed fixed-point scalar stored as an
// int64: real_value = raw / 2^32. All arithmetic saturates on overflow;
// multiplication and division round to nearest with ties-to-even at the
// fractional boundary. Unlike F32Scalar, DFix64 has no NaN representation:
// from_f32(NaN) maps to 0, and infinities saturate to the integer extremes.
type DFix64 struct {
	raw int64
}

var DFix64Zero = DFix64{raw: 0}
var DFix64One = DFix64{raw: OneRaw}

// DFix64FromRaw constructs a DFix64 directly from a raw Q32.32 integer (no
// scaling or rounding).
func DFix64FromRaw(raw int64) DFix64 { return DFix64{raw: raw} }

// Raw returns the underlying Q32.32 integer storage.
func (d DFix64) Raw() int64 { return d.raw }

// saturatingAddRaw computes a+b, saturating to the int64 extremes on
// overflow rather than relying on wraparound.
func saturatingAddRaw(a, b int64) int64 {
	sum := a + b
	// Overflow iff a and b have the same sign and the result's sign differs.
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		if a > 0 {
			return int64Max
		}
		return int64Min
	}
	return sum
}

func saturatingSubRaw(a, b int64) int64 {
	diff := a - b
	if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0) {
		if a >= 0 {
			return int64Max
		}
		return int64Min
	}
	return diff
}

func saturatingNegRaw(a int64) int64 {
	if a == int64Min {
		return int64Max
	}
	return -a
}

const (
	int64Max = int64(1<<63 - 1)
	int64Min = -int64Max - 1
)

// mulRaw computes (a*b) >> FracBits with round-to-nearest-ties-to-even,
// saturating on overflow. Uses 128-bit intermediate arithmetic via
// math/bits.Mul64/Sub64 on the unsigned magnitudes.
func mulRaw(a, b int64) int64 {
	neg := (a < 0) != (b < 0)
	au, bu := absU64(a), absU64(b)

	hi, lo := bits.Mul64(au, bu)
	// (hi:lo) >> FracBits, with rounding.
	qHi := hi >> FracBits
	qLo := hi<<(64-FracBits) | lo>>FracBits
	remMask := uint64(1)<<FracBits - 1
	r := lo & remMask
	half := uint64(1) << (FracBits - 1)

	roundUp := r > half || (r == half && qLo&1 == 1)
	if roundUp {
		var carry uint64
		qLo, carry = bits.Add64(qLo, 1, 0)
		qHi += carry
	}

	if qHi != 0 {
		// Magnitude exceeds 64 bits after shifting: saturate.
		if neg {
			return int64Min
		}
		return int64Max
	}

	return signedSaturate(qLo, neg)
}

// divRaw computes ((a << FracBits) / b) with round-to-nearest-ties-to-even,
// saturating on overflow. a/0 saturates to int64Max for positive a and
// int64Min for negative a, except 0/0 which is 0
// by this representation's determinism policy (no NaN to return instead).
func divRaw(a, b int64) int64 {
	if b == 0 {
		if a == 0 {
			return 0
		}
		if a < 0 {
			return int64Min
		}
		return int64Max
	}

	neg := (a < 0) != (b < 0)
	au, bu := absU64(a), absU64(b)

	// num = au << FracBits, as a 128-bit value (hi:lo).
	hi := au >> (64 - FracBits)
	lo := au << FracBits

	if hi >= bu {
		// Quotient would not fit in 64 bits: saturate.
		if neg {
			return int64Min
		}
		return int64Max
	}

	q, r := bits.Div64(hi, lo, bu)
	twiceR, carryR := bits.Add64(r, r, 0)
	var roundUp bool
	if carryR != 0 {
		roundUp = true
	} else {
		roundUp = twiceR > bu || (twiceR == bu && q&1 == 1)
	}
	if roundUp {
		if q == ^uint64(0) {
			// Increment would wrap; the magnitude already saturates below.
			return signedSaturate(q, neg)
		}
		q++
	}

	return signedSaturate(q, neg)
}

func absU64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func signedSaturate(mag uint64, neg bool) int64 {
	if neg {
		if mag > uint64(int64Max)+1 {
			return int64Min
		}
		return -int64(mag)
	}
	if mag > uint64(int64Max) {
		return int64Max
	}
	return int64(mag)
}

func (d DFix64) Add(other Scalar) Scalar {
	return DFix64{raw: saturatingAddRaw(d.raw, other.(DFix64).raw)}
}

func (d DFix64) Sub(other Scalar) Scalar {
	return DFix64{raw: saturatingSubRaw(d.raw, other.(DFix64).raw)}
}

func (d DFix64) Mul(other Scalar) Scalar {
	return DFix64{raw: mulRaw(d.raw, other.(DFix64).raw)}
}

func (d DFix64) Div(other Scalar) Scalar {
	return DFix64{raw: divRaw(d.raw, other.(DFix64).raw)}
}

func (d DFix64) Neg() Scalar {
	return DFix64{raw: saturatingNegRaw(d.raw)}
}

func (d DFix64) Sin() Scalar {
	s, _ := sinCosF32(d.ToF32())
	return DFix64FromF32(s)
}

func (d DFix64) Cos() Scalar {
	_, c := sinCosF32(d.ToF32())
	return DFix64FromF32(c)
}

func (d DFix64) SinCos() (Scalar, Scalar) {
	s, c := sinCosF32(d.ToF32())
	return DFix64FromF32(s), DFix64FromF32(c)
}

// ToF32 round-trips the fixed-point value to float32 with ties-to-even
// rounding at the float32 mantissa boundary.
func (d DFix64) ToF32() float32 { return Q32ToF32(d.raw) }

// DFix64FromF32 constructs a DFix64 from a float32 per the determinism
// policy: NaN -> 0, +-Inf -> int64 extremes, otherwise round-half-to-even
// at the Q32.32 boundary.
func DFix64FromF32(value float32) DFix64 {
	return DFix64{raw: Q32FromF32(value)}
}

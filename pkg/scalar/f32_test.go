package scalar_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flyingrobots/warp-core/pkg/scalar"
)

func TestEveryNaNBitPatternCollapsesToCanonicalQuietNaN(t *testing.T) {
	patterns := []uint32{
		0x7FC00000, // already-canonical quiet NaN
		0x7F800001, // smallest signaling NaN
		0xFFC00000, // negative quiet NaN
		0xFFFFFFFF, // all-ones NaN
		0x7FA00000, // another quiet NaN pattern
	}
	for _, bits := range patterns {
		got := scalar.NewF32Scalar(math.Float32frombits(bits))
		assert.Equal(t, uint32(0x7FC00000), got.Bits(), "bits 0x%X", bits)
	}
}

func TestSubnormalsFlushToPositiveZero(t *testing.T) {
	smallest := math.Float32frombits(1) // smallest positive subnormal
	got := scalar.NewF32Scalar(smallest)
	assert.Equal(t, uint32(0), got.Bits())

	negSubnormal := math.Float32frombits(0x80000001)
	got = scalar.NewF32Scalar(negSubnormal)
	assert.Equal(t, uint32(0), got.Bits())
}

func TestNegativeZeroNormalizesToPositiveZero(t *testing.T) {
	got := scalar.NewF32Scalar(math.Float32frombits(0x80000000))
	assert.Equal(t, uint32(0), got.Bits())
}

func TestInfinitiesArePreservedAndDistinctFromNaN(t *testing.T) {
	posInf := scalar.NewF32Scalar(float32(math.Inf(1)))
	negInf := scalar.NewF32Scalar(float32(math.Inf(-1)))
	nan := scalar.NewF32Scalar(float32(math.NaN()))

	assert.True(t, math.IsInf(float64(posInf.ToF32()), 1))
	assert.True(t, math.IsInf(float64(negInf.ToF32()), -1))
	assert.NotEqual(t, posInf.Bits(), nan.Bits())
	assert.NotEqual(t, negInf.Bits(), nan.Bits())
}

func TestCompareTotalOrdersCanonicalNaNAboveInfinity(t *testing.T) {
	nan := scalar.NewF32Scalar(float32(math.NaN()))
	posInf := scalar.NewF32Scalar(float32(math.Inf(1)))

	assert.True(t, posInf.Less(nan))
	assert.True(t, nan.Equal(nan))
}

func TestCompareOrdersNegativeBeforePositive(t *testing.T) {
	neg := scalar.NewF32Scalar(-1.5)
	pos := scalar.NewF32Scalar(1.5)
	zero := scalar.NewF32Scalar(0)

	assert.True(t, neg.Less(zero))
	assert.True(t, zero.Less(pos))
	assert.True(t, neg.Less(pos))
}

func TestArithmeticCanonicalizesResult(t *testing.T) {
	a := scalar.NewF32Scalar(1)
	b := scalar.NewF32Scalar(1)
	diff := a.Sub(b).(scalar.F32Scalar)
	negDiff := diff.Neg().(scalar.F32Scalar)
	// 1-1 is +0; negating +0 must still canonicalize to +0, not -0.
	assert.Equal(t, uint32(0), negDiff.Bits())
}

func TestSinCosOfZero(t *testing.T) {
	s := scalar.NewF32Scalar(0)
	sinV, cosV := s.SinCos()
	assert.InDelta(t, 0, sinV.ToF32(), 1e-3)
	assert.InDelta(t, 1, cosV.ToF32(), 1e-3)
}

func TestSinCosPythagoreanIdentityHoldsApproximately(t *testing.T) {
	for _, angle := range []float32{0.3, 1.0, 2.5, 4.2, 6.1, -1.7} {
		s := scalar.NewF32Scalar(angle)
		sinV, cosV := s.SinCos()
		sum := sinV.ToF32()*sinV.ToF32() + cosV.ToF32()*cosV.ToF32()
		assert.InDelta(t, 1.0, sum, 1e-2, "angle %v", angle)
	}
}

func TestSinCosOfNaNAndInfinityIsCanonicalNaN(t *testing.T) {
	for _, v := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		s := scalar.NewF32Scalar(v)
		sinV := s.Sin().(scalar.F32Scalar)
		cosV := s.Cos().(scalar.F32Scalar)
		assert.Equal(t, uint32(0x7FC00000), sinV.Bits())
		assert.Equal(t, uint32(0x7FC00000), cosV.Bits())
	}
}

func TestSinCosIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	s := scalar.NewF32Scalar(1.2345)
	sin1, cos1 := s.SinCos()
	sin2, cos2 := s.SinCos()
	assert.Equal(t, sin1.(scalar.F32Scalar).Bits(), sin2.(scalar.F32Scalar).Bits())
	assert.Equal(t, cos1.(scalar.F32Scalar).Bits(), cos2.(scalar.F32Scalar).Bits())
}

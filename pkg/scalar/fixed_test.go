package scalar_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flyingrobots/warp-core/pkg/scalar"
)

func TestDFix64FromF32NaNMapsToZero(t *testing.T) {
	d := scalar.DFix64FromF32(float32(math.NaN()))
	assert.Equal(t, int64(0), d.Raw())
}

func TestDFix64FromF32InfinitySaturates(t *testing.T) {
	pos := scalar.DFix64FromF32(float32(math.Inf(1)))
	neg := scalar.DFix64FromF32(float32(math.Inf(-1)))
	assert.Equal(t, int64(1<<63-1), pos.Raw())
	assert.Equal(t, -int64(1<<63-1)-1, neg.Raw())
}

func TestDFix64FromF32RoundTripsIntegerValues(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 2, 1000, -1000} {
		d := scalar.DFix64FromF32(v)
		assert.Equal(t, v, d.ToF32(), "value %v", v)
	}
}

func TestDFix64FromF32HalvesRoundTripExactly(t *testing.T) {
	for _, v := range []float32{0.5, -0.5, 1.5, -1.5, 0.25, 0.125} {
		d := scalar.DFix64FromF32(v)
		assert.Equal(t, v, d.ToF32(), "value %v", v)
	}
}

func TestDFix64AddSaturatesOnOverflow(t *testing.T) {
	max := scalar.DFix64FromRaw(1<<63 - 1)
	one := scalar.DFix64One
	got := max.Add(one).(scalar.DFix64)
	assert.Equal(t, int64(1<<63-1), got.Raw())
}

func TestDFix64SubSaturatesOnUnderflow(t *testing.T) {
	min := scalar.DFix64FromRaw(-int64(1<<63-1) - 1)
	one := scalar.DFix64One
	got := min.Sub(one).(scalar.DFix64)
	assert.Equal(t, -int64(1<<63-1)-1, got.Raw())
}

func TestDFix64NegSaturatesAtMinBoundary(t *testing.T) {
	min := scalar.DFix64FromRaw(-int64(1<<63-1) - 1)
	got := min.Neg().(scalar.DFix64)
	assert.Equal(t, int64(1<<63-1), got.Raw())
}

func TestDFix64MulIdentity(t *testing.T) {
	three := scalar.DFix64FromF32(3)
	got := three.Mul(scalar.DFix64One).(scalar.DFix64)
	assert.Equal(t, three.Raw(), got.Raw())
}

func TestDFix64MulFraction(t *testing.T) {
	half := scalar.DFix64FromF32(0.5)
	got := half.Mul(half).(scalar.DFix64)
	assert.Equal(t, scalar.DFix64FromF32(0.25).Raw(), got.Raw())
}

func TestDFix64MulSaturatesOnOverflow(t *testing.T) {
	big := scalar.DFix64FromF32(1 << 20)
	got := big.Mul(big).(scalar.DFix64)
	assert.Equal(t, int64(1<<63-1), got.Raw())
}

func TestDFix64DivByZeroSaturatesBySign(t *testing.T) {
	one := scalar.DFix64One
	negOne := one.Neg().(scalar.DFix64)
	zero := scalar.DFix64Zero

	assert.Equal(t, int64(1<<63-1), one.Div(zero).(scalar.DFix64).Raw())
	assert.Equal(t, -int64(1<<63-1)-1, negOne.Div(zero).(scalar.DFix64).Raw())
	assert.Equal(t, int64(0), zero.Div(zero).(scalar.DFix64).Raw())
}

func TestDFix64DivIdentity(t *testing.T) {
	three := scalar.DFix64FromF32(3)
	got := three.Div(scalar.DFix64One).(scalar.DFix64)
	assert.Equal(t, three.Raw(), got.Raw())
}

func TestDFix64DivInverseOfMulApproximately(t *testing.T) {
	a := scalar.DFix64FromF32(7)
	b := scalar.DFix64FromF32(2)
	q := a.Div(b).(scalar.DFix64)
	assert.InDelta(t, 3.5, q.ToF32(), 1e-6)
}

func TestDFix64SameOperationOnSameInputsIsBitIdentical(t *testing.T) {
	a := scalar.DFix64FromF32(1.25)
	b := scalar.DFix64FromF32(-3.75)

	r1 := a.Mul(b).(scalar.DFix64)
	r2 := a.Mul(b).(scalar.DFix64)
	assert.Equal(t, r1.Raw(), r2.Raw())
}

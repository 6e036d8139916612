package scalar

import "math"

// quarterWaveSteps is the number of LUT intervals covering [0, pi/2]; the
// table holds quarterWaveSteps+1 entries, both endpoints included. The
// table is built once at package init from float64 math.Sin, truncated to
// float32 precision, and is never touched by a platform libm call again:
// every sin/cos this package returns is a pure function of the inputs and
// this fixed table, so results are bit-stable across platforms regardless
// of which libm the host happens to ship.
const quarterWaveSteps = 256

var quarterWaveSin [quarterWaveSteps + 1]float32

func init() {
	for i := 0; i <= quarterWaveSteps; i++ {
		angle := (math.Pi / 2) * (float64(i) / float64(quarterWaveSteps))
		quarterWaveSin[i] = float32(math.Sin(angle))
	}
}

// lutSin evaluates sine over [0, pi/2] via linear interpolation between
// adjacent table entries. x must already be reduced into that range by the
// caller (sinCosF32 below handles full-range reduction).
func lutSin(x float32) float32 {
	if x <= 0 {
		return 0
	}
	const halfPi = float32(math.Pi / 2)
	if x >= halfPi {
		return 1
	}
	scaled := x / halfPi * float32(quarterWaveSteps)
	idx := int(scaled)
	if idx >= quarterWaveSteps {
		return quarterWaveSin[quarterWaveSteps]
	}
	frac := scaled - float32(idx)
	lo, hi := quarterWaveSin[idx], quarterWaveSin[idx+1]
	return lo + (hi-lo)*frac
}

// sinCosF32 computes sine and cosine of x (radians) using the quarter-wave
// LUT plus exact quadrant reduction, entirely in float32/float64 arithmetic
// with no dependency on the host's libm sin/cos. Determinism contract: same
// bits in, same bits out, on every platform.
func sinCosF32(x float32) (float32, float32) {
	if isNaN32(x) || math.IsInf(float64(x), 0) {
		nan := float32(math.NaN())
		return nan, nan
	}

	const twoPi = float32(2 * math.Pi)
	const halfPi = float32(math.Pi / 2)

	// Reduce to [0, 2*pi) using float64 intermediate precision to keep the
	// reduction itself stable for large inputs.
	reduced := float32(math.Mod(float64(x), float64(twoPi)))
	if reduced < 0 {
		reduced += twoPi
	}

	quadrant := int(reduced / halfPi)
	offset := reduced - float32(quadrant)*halfPi

	s := lutSin(offset)
	c := lutSin(halfPi - offset)

	switch quadrant % 4 {
	case 0:
		return s, c
	case 1:
		return c, -s
	case 2:
		return -s, -c
	default: // 3
		return -c, s
	}
}

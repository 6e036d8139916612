// Package scalar implements warp-core's deterministic numeric backends.
//
// Rewrite executors never touch a platform float or a platform libm
// transcendental directly. Instead they operate through the Scalar
// interface, which is implemented by two interchangeable concrete types:
// F32Scalar (a canonicalized IEEE-754 float32) and DFix64 (a saturating
// Q32.32 fixed-point integer). Both are pure and total: every operation
// produces the same bits on every platform for the same inputs, which is
// the property the rest of the engine's determinism guarantee rests on.
package scalar

// Scalar is the minimal deterministic numeric surface rewrite rules are
// written against. Engine code that needs to stay agnostic to the chosen
// backend (F32Scalar vs DFix64) should depend on this interface rather than
// either concrete type.
type Scalar interface {
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Mul(Scalar) Scalar
	Div(Scalar) Scalar
	Neg() Scalar
	Sin() Scalar
	Cos() Scalar
	SinCos() (Scalar, Scalar)
	ToF32() float32
}

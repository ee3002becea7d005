package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Clone returns a copy of x. A nil input yields nil, which keeps
// optional state fields (gradients before the first evaluation) nil
// through serialization round-trips.
func Clone(x []float64) []float64 {
	if x == nil {
		return nil
	}
	out := make([]float64, len(x))
	copy(out, x)
	return out
}

// Norm returns the Euclidean norm of x.
func Norm(x []float64) float64 {
	return floats.Norm(x, 2)
}

// Dot returns the dot product of a and b. Panics if lengths differ,
// mirroring gonum's convention for programmer errors.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// AXPY returns y + alpha*x as a new slice; neither input is modified.
func AXPY(alpha float64, x, y []float64) []float64 {
	out := Clone(y)
	floats.AddScaled(out, alpha, x)
	return out
}

// Sub returns a - b as a new slice.
func Sub(a, b []float64) []float64 {
	out := Clone(a)
	floats.Sub(out, b)
	return out
}

// Scale returns alpha*x as a new slice.
func Scale(alpha float64, x []float64) []float64 {
	out := Clone(x)
	floats.Scale(alpha, out)
	return out
}

// AllFinite reports whether every element of x is finite (no NaN, no Inf).
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clamp limits every element of x to [lower[i], upper[i]] in place.
func Clamp(x, lower, upper []float64) {
	for i := range x {
		x[i] = math.Max(lower[i], math.Min(upper[i], x[i]))
	}
}

// EqualApprox reports whether a and b are element-wise equal within tol.
func EqualApprox(a, b []float64, tol float64) bool {
	return floats.EqualApprox(a, b, tol)
}

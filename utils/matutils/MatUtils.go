// Package matutils implements utility function for working with mat.Matrix
// structs
package matutils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// VecClipVec clips each element of a to stay within the per-element
// bounds given by lower and upper
func VecClipVec(a *mat.VecDense, lower, upper mat.Vector) {
	for i := 0; i < a.Len(); i++ {
		value := a.AtVec(i)

		if value < lower.AtVec(i) {
			a.SetVec(i, lower.AtVec(i))
		} else if value > upper.AtVec(i) {
			a.SetVec(i, upper.AtVec(i))
		}
	}
}

// VecClipSym clips each element of a to within [-bound_i, bound_i] for
// the per-element bounds given by bound
func VecClipSym(a *mat.VecDense, bound mat.Vector) {
	for i := 0; i < a.Len(); i++ {
		value := a.AtVec(i)

		if value < -bound.AtVec(i) {
			a.SetVec(i, -bound.AtVec(i))
		} else if value > bound.AtVec(i) {
			a.SetVec(i, bound.AtVec(i))
		}
	}
}

// VecZeroNaN replaces any NaN elements of a with zero
func VecZeroNaN(a *mat.VecDense) {
	for i := 0; i < a.Len(); i++ {
		if math.IsNaN(a.AtVec(i)) {
			a.SetVec(i, 0.0)
		}
	}
}

// Package quatutils implements quaternion helpers for pose arithmetic.
// Quaternions follow the simulator's (x, y, z, w) component order when
// stored in raw buffers and gonum's quat.Number everywhere else.
package quatutils

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon floor below which vector and quaternion norms are considered
// degenerate and replaced instead of divided by
const Epsilon float64 = 1e-6

// Identity returns the identity rotation
func Identity() quat.Number {
	return quat.Number{Real: 1.0}
}

// FromXYZW converts an (x, y, z, w) component quadruple into a
// quat.Number
func FromXYZW(x, y, z, w float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// XYZW converts a quat.Number back into (x, y, z, w) component order
func XYZW(q quat.Number) (x, y, z, w float64) {
	return q.Imag, q.Jmag, q.Kmag, q.Real
}

// Normalize scales q to unit norm. Near-zero quaternions cannot be
// meaningfully normalized and are replaced with the identity rotation
// rather than producing NaN components.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm < Epsilon {
		return Identity()
	}
	return quat.Scale(1.0/norm, q)
}

// Diff returns the difference rotation taking b to a, that is
// a ⊗ conj(b)
func Diff(a, b quat.Number) quat.Number {
	return quat.Mul(a, quat.Conj(b))
}

// DiffNorm returns the norm of the difference quaternion between a and
// b. For unit quaternions this is an approximation of orientation
// error, not the geodesic distance.
func DiffNorm(a, b quat.Number) float64 {
	return quat.Abs(Diff(a, b))
}

// AngleAxis decomposes q into a rotation angle and a unit axis. For
// rotations within Epsilon of the identity the axis is undefined and
// the zero vector is returned alongside a zero angle.
func AngleAxis(q quat.Number) (float64, r3.Vec) {
	vecNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if vecNorm < Epsilon {
		return 0.0, r3.Vec{}
	}

	angle := 2.0 * math.Atan2(vecNorm, q.Real)
	if angle > math.Pi {
		angle -= 2.0 * math.Pi
	}
	axis := r3.Scale(1.0/vecNorm, r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag})
	return angle, axis
}

// OriError returns the scaled axis-angle orientation error taking the
// current rotation to the desired one
func OriError(desired, current quat.Number) r3.Vec {
	angle, axis := AngleAxis(Diff(desired, current))
	return r3.Scale(angle, axis)
}

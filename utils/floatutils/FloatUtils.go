// Package floatutils provides utilities for working with floats
package floatutils

import "math"

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// Sigmoid computes the logistic sigmoid of x
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// WrapAngle wraps an angle in radians into [-π, π) so that joint-space
// errors always take the short way around
func WrapAngle(x float64) float64 {
	x = math.Mod(x+math.Pi, 2.0*math.Pi)
	if x < 0 {
		x += 2.0 * math.Pi
	}
	return x - math.Pi
}

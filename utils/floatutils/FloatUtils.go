// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipInterval is a wrapper to use Clip with an r1.Interval instead of
// a separate max and min value
func ClipInterval(value float64, interval r1.Interval) float64 {
	return Clip(value, interval.Min, interval.Max)
}

// ClipVec clips each element of v in place to within the matching
// elements of min and max
func ClipVec(v *mat.VecDense, min, max mat.Vector) {
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, Clip(v.AtVec(i), min.AtVec(i), max.AtVec(i)))
	}
}

// NaNMask returns a slice with 1.0 wherever values is NaN and 0.0
// elsewhere
func NaNMask(values []float64) []float64 {
	mask := make([]float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) {
			mask[i] = 1.0
		}
	}
	return mask
}

// ReplaceNaN returns a copy of values with each NaN replaced by r
func ReplaceNaN(values []float64, r float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) {
			out[i] = r
		} else {
			out[i] = values[i]
		}
	}
	return out
}

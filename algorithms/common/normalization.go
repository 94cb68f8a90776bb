package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// GlobalMax returns the largest value across all series, ignoring empty ones.
// With no values at all it returns 0.
func GlobalMax(series ...[]float64) float64 {
	found := false
	result := 0.0

	for _, s := range series {
		if len(s) == 0 {
			continue
		}
		m := floats.Max(s)
		if !found || m > result {
			result = m
			found = true
		}
	}

	return result
}

// NormalizeByMax divides value by maximum, yielding 0 instead of NaN or
// Inf when the maximum is zero, negative or not finite
func NormalizeByMax(value, maximum float64) float64 {
	if maximum <= 0 || math.IsInf(maximum, 0) || math.IsNaN(maximum) {
		return 0.0
	}
	return value / maximum
}

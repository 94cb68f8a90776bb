package stats

import (
	"gonum.org/v1/gonum/floats"
)

// SquaredEuclidean returns the squared Euclidean distance between a and b
func SquaredEuclidean(a, b []float64) float64 {
	if len(a) == 0 {
		return 0.0
	}
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	return floats.Dot(diff, diff)
}

// QuarticDistance squares the squared Euclidean distance, which stretches
// large separations much more than small ones
func QuarticDistance(a, b []float64) float64 {
	sq := SquaredEuclidean(a, b)
	return sq * sq
}

// ScaledDivergence compares short against long scaled by ratio using
// QuarticDistance
func ScaledDivergence(short, long []float64, ratio float64) float64 {
	scaled := make([]float64, len(long))
	floats.ScaleTo(scaled, ratio, long)
	return QuarticDistance(short, scaled)
}

package temporal

import (
	"gonum.org/v1/gonum/floats"
)

// Energy returns the sum of squared samples of a frame
func Energy(frame []float64) float64 {
	if len(frame) == 0 {
		return 0.0
	}
	return floats.Dot(frame, frame)
}

package spectral

// ZeroCrossings counts adjacent sample pairs whose product is negative.
// Samples that are exactly zero never count as a crossing.
func ZeroCrossings(frame []float64) int {
	if len(frame) < 2 {
		return 0
	}

	crossings := 0
	for i := 1; i < len(frame); i++ {
		if frame[i-1]*frame[i] < 0 {
			crossings++
		}
	}

	return crossings
}

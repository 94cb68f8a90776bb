package spectral

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultLowBandFraction is the share of the spectrum treated as "low frequency"
const DefaultLowBandFraction = 0.05

// LowFrequencyContent returns the mean magnitude of bins 0..ceil(fraction*len)
// inclusive. The upper bound is clamped to the spectrum, and an empty spectrum
// yields 0.
func LowFrequencyContent(spectrum []float64, fraction float64) float64 {
	if len(spectrum) == 0 || fraction < 0 {
		return 0.0
	}

	end := int(math.Ceil(float64(len(spectrum)) * fraction))
	end = min(end, len(spectrum)-1)

	return stat.Mean(spectrum[:end+1], nil)
}

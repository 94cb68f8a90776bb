package syncpoint

import (
	"github.com/RyanBlaney/audiosync/algorithms/common"
)

// Maxima are the buffer-wide feature maxima used for normalization
type Maxima struct {
	LowFreqContent   float64 `json:"low_freq_content"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	Energy           float64 `json:"energy"`
}

// FeatureMaxima finds each feature's maximum across every channel and frame
func FeatureMaxima(features *FeatureSet) Maxima {
	if features == nil {
		return Maxima{}
	}

	var lfc, zcr, energy []float64
	for _, channel := range features.Channels {
		for _, set := range channel {
			lfc = append(lfc, set.LowFreqContent)
			zcr = append(zcr, set.ZeroCrossingRate)
			energy = append(energy, set.Energy)
		}
	}

	return Maxima{
		LowFreqContent:   common.GlobalMax(lfc),
		ZeroCrossingRate: common.GlobalMax(zcr),
		Energy:           common.GlobalMax(energy),
	}
}

// Normalize divides every feature by its buffer-wide maximum, giving one
// FeatureVector per frame per channel. Zero maxima produce zero components.
func Normalize(features *FeatureSet) [][]FeatureVector {
	if features == nil {
		return nil
	}

	maxima := FeatureMaxima(features)

	out := make([][]FeatureVector, len(features.Channels))
	for ch, channel := range features.Channels {
		vectors := make([]FeatureVector, len(channel))
		for i, set := range channel {
			vectors[i][FeatureLowFreq] = common.NormalizeByMax(set.LowFreqContent, maxima.LowFreqContent)
			vectors[i][FeatureZeroCrossing] = common.NormalizeByMax(set.ZeroCrossingRate, maxima.ZeroCrossingRate)
			vectors[i][FeatureEnergy] = common.NormalizeByMax(set.Energy, maxima.Energy)
		}
		out[ch] = vectors
	}

	return out
}

package syncpoint

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/audiosync/algorithms/spectral"
	"github.com/RyanBlaney/audiosync/algorithms/temporal"
	"github.com/RyanBlaney/audiosync/logging"
	"github.com/RyanBlaney/audiosync/syncpoint/config"
)

// cancelCheckInterval is how many frames are extracted between context checks
const cancelCheckInterval = 256

// Extractor derives raw per-frame features from a SampleBuffer
type Extractor struct {
	config *config.AnalyzerConfig
	logger logging.Logger
}

// NewExtractor creates an extractor. A nil config uses the defaults.
func NewExtractor(cfg *config.AnalyzerConfig) *Extractor {
	if cfg == nil {
		cfg = config.DefaultAnalyzerConfig()
	}

	return &Extractor{
		config: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}
}

// Extract frames every analysed channel and computes energy, zero crossings
// and low-frequency content for each frame. A buffer shorter than one frame
// yields empty channels.
func (e *Extractor) Extract(ctx context.Context, buffer *SampleBuffer) (*FeatureSet, error) {
	if buffer == nil || buffer.NumChannels() == 0 {
		return nil, ErrMissingBuffer
	}

	logger := e.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":    "Extract",
		"channels":    buffer.NumChannels(),
		"sample_rate": buffer.SampleRate,
		"samples":     buffer.Len(),
	})

	overlap := e.config.Overlap
	if overlap == config.OverlapAuto {
		overlap = temporal.DefaultOverlap(e.config.FFTSamples, buffer.Len(), e.config.DisplayWidth)
	}

	fft, err := spectral.NewFFT(e.config.FFTSamples, e.config.WindowType)
	if err != nil {
		return nil, fmt.Errorf("failed to create FFT: %w", err)
	}

	channels := 1
	if e.config.SplitChannels {
		channels = buffer.NumChannels()
	}

	features := &FeatureSet{
		Channels:   make([][]SpectrumFeatureSet, channels),
		SampleRate: buffer.SampleRate,
		FFTSamples: e.config.FFTSamples,
		HopSize:    e.config.FFTSamples - overlap,
		Duration:   buffer.Duration,
	}

	for ch := range channels {
		framer, err := temporal.NewFramer(buffer.Channels[ch], e.config.FFTSamples, overlap)
		if err != nil {
			return nil, fmt.Errorf("failed to frame channel %d: %w", ch, err)
		}

		sets := make([]SpectrumFeatureSet, 0, framer.Count())
		for i, frame := range framer.Frames() {
			if i%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}

			set, err := e.frameFeatures(fft, frame)
			if err != nil {
				return nil, fmt.Errorf("channel %d frame %d: %w", ch, i, err)
			}
			sets = append(sets, set)
		}
		features.Channels[ch] = sets
	}

	logger.Debug("Features extracted", logging.Fields{
		"frames":   features.Frames(),
		"hop_size": features.HopSize,
		"overlap":  overlap,
	})

	return features, nil
}

func (e *Extractor) frameFeatures(fft *spectral.FFT, frame []float64) (SpectrumFeatureSet, error) {
	spectrum, err := fft.Magnitude(frame)
	if err != nil {
		return SpectrumFeatureSet{}, err
	}

	return SpectrumFeatureSet{
		Spectrum:         spectrum,
		LowFreqContent:   spectral.LowFrequencyContent(spectrum, e.config.LowBandFraction),
		ZeroCrossingRate: float64(spectral.ZeroCrossings(frame)),
		Energy:           temporal.Energy(frame),
	}, nil
}

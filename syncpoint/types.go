package syncpoint

import (
	"math"
	"time"

	"github.com/RyanBlaney/audiosync/syncpoint/config"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SampleBuffer is a decoded, read-only multichannel signal
type SampleBuffer struct {
	Channels   [][]float64   `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
}

// NumChannels returns the number of channels
func (b *SampleBuffer) NumChannels() int {
	return len(b.Channels)
}

// Len returns the samples in the first channel
func (b *SampleBuffer) Len() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// FeatureVector is a normalized (lfc, zcr, energy) triple
type FeatureVector [3]float64

const (
	FeatureLowFreq = iota
	FeatureZeroCrossing
	FeatureEnergy

	featureCount
)

// Slice returns the vector as a slice backed by a copy
func (v FeatureVector) Slice() []float64 {
	return []float64{v[0], v[1], v[2]}
}

func vectorFrom(s []float64) FeatureVector {
	var v FeatureVector
	copy(v[:], s)
	return v
}

// SpectrumFeatureSet holds the raw descriptors of one frame
type SpectrumFeatureSet struct {
	Spectrum         []float64 `json:"-"`
	LowFreqContent   float64   `json:"low_freq_content"`
	ZeroCrossingRate float64   `json:"zero_crossing_rate"`
	Energy           float64   `json:"energy"`
}

// FeatureSet holds per-channel, per-frame raw features of one buffer
type FeatureSet struct {
	Channels   [][]SpectrumFeatureSet `json:"channels"`
	SampleRate int                    `json:"sample_rate"`
	FFTSamples int                    `json:"fft_samples"`
	HopSize    int                    `json:"hop_size"`
	Duration   time.Duration          `json:"duration"`
}

// FrameRate returns analysed frames per second
func (fs *FeatureSet) FrameRate() float64 {
	if fs.HopSize <= 0 {
		return 0
	}
	return float64(fs.SampleRate) / float64(fs.HopSize)
}

// FrameTime returns the start time of a frame
func (fs *FeatureSet) FrameTime(frame int) time.Duration {
	if fs.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frame*fs.HopSize) * time.Second / time.Duration(fs.SampleRate)
}

// Frames returns the frame count of the first channel
func (fs *FeatureSet) Frames() int {
	if len(fs.Channels) == 0 {
		return 0
	}
	return len(fs.Channels[0])
}

// Trigger is a detected sync point
type Trigger struct {
	Channel    int           `json:"channel"`
	Frame      int           `json:"frame"`
	Time       time.Duration `json:"time"`
	Divergence float64       `json:"divergence"`
}

// ChannelResult is the detector output for one channel
type ChannelResult struct {
	Channel    int             `json:"channel"`
	Features   []FeatureVector `json:"features"`
	ShortSums  []FeatureVector `json:"short_sums,omitempty"`
	LongSums   []FeatureVector `json:"long_sums,omitempty"`
	Divergence []float64       `json:"divergence"`
	Cooldown   []float64       `json:"cooldown,omitempty"`
	Triggers   []Trigger       `json:"triggers"`
}

// Result is one completed analysis pass
type Result struct {
	Settings   config.Settings `json:"settings"`
	SampleRate int             `json:"sample_rate"`
	FFTSamples int             `json:"fft_samples"`
	HopSize    int             `json:"hop_size"`
	FrameRate  float64         `json:"frame_rate"`
	Duration   time.Duration   `json:"duration"`
	Channels   []ChannelResult `json:"channels"`
}

// SeriesStats summarises a divergence series
type SeriesStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
	MaxAt  int     `json:"max_at"`
}

// Frames returns the frame count of the first channel
func (r *Result) Frames() int {
	if r == nil || len(r.Channels) == 0 {
		return 0
	}
	return len(r.Channels[0].Divergence)
}

// AllTriggers returns every channel's triggers in channel order
func (r *Result) AllTriggers() []Trigger {
	if r == nil {
		return nil
	}

	var all []Trigger
	for _, ch := range r.Channels {
		all = append(all, ch.Triggers...)
	}
	return all
}

// Bars resamples a channel's divergence onto width columns. Each column
// takes the maximum of the frames it covers, divided by the series maximum.
// A silent series yields all-zero bars.
func (r *Result) Bars(channel, width int) []float64 {
	if r == nil || width <= 0 || channel < 0 || channel >= len(r.Channels) {
		return nil
	}

	series := r.Channels[channel].Divergence
	bars := make([]float64, width)
	if len(series) == 0 {
		return bars
	}

	peak := floats.Max(series)
	if peak <= 0 || math.IsInf(peak, 0) || math.IsNaN(peak) {
		return bars
	}

	for col := range width {
		from := col * len(series) / width
		to := max((col+1)*len(series)/width, from+1)
		to = min(to, len(series))
		bars[col] = floats.Max(series[from:to]) / peak
	}

	return bars
}

// Stats summarises a channel's divergence series
func (r *Result) Stats(channel int) SeriesStats {
	if r == nil || channel < 0 || channel >= len(r.Channels) {
		return SeriesStats{}
	}

	series := r.Channels[channel].Divergence
	if len(series) == 0 {
		return SeriesStats{}
	}

	mean, std := stat.MeanStdDev(series, nil)
	if len(series) == 1 {
		std = 0
	}

	return SeriesStats{
		Mean:   mean,
		StdDev: std,
		Max:    floats.Max(series),
		MaxAt:  floats.MaxIdx(series),
	}
}

package syncpoint

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/RyanBlaney/audiosync/syncpoint/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 8000

func testConfig() *config.AnalyzerConfig {
	cfg := config.DefaultAnalyzerConfig()
	cfg.FFTSamples = 64
	cfg.DisplayWidth = 0
	cfg.Debounce = 100 * time.Millisecond
	cfg.RefreshRate = 5 * time.Millisecond
	cfg.Settings = config.Settings{WindowSize: 8, ShortWindowSize: 2, CooldownDuration: 0.5}
	return cfg
}

func sine(n int, freq, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return out
}

func bufferOf(channels ...[]float64) *SampleBuffer {
	return &SampleBuffer{
		Channels:   channels,
		SampleRate: testSampleRate,
		Duration:   time.Duration(float64(len(channels[0])) / testSampleRate * float64(time.Second)),
	}
}

// changeBuffer is one second of a quiet low tone followed by a loud high one
// halfway through
func changeBuffer() *SampleBuffer {
	quiet := sine(testSampleRate/2, 200, 0.1)
	loud := sine(testSampleRate/2, 2000, 0.9)
	return bufferOf(append(quiet, loud...))
}

func TestExtractor_FrameCountsAndHop(t *testing.T) {
	cfg := testConfig()
	cfg.DisplayWidth = 100

	features, err := NewExtractor(cfg).Extract(context.Background(), bufferOf(make([]float64, 1000)))
	require.NoError(t, err)

	// 10 samples per column gives overlap 54
	assert.Equal(t, 10, features.HopSize)
	assert.Equal(t, 94, features.Frames())
	assert.InDelta(t, 800.0, features.FrameRate(), 1e-9)
}

func TestExtractor_ExplicitZeroOverlap(t *testing.T) {
	cfg := testConfig()
	cfg.DisplayWidth = 100
	cfg.Overlap = 0

	features, err := NewExtractor(cfg).Extract(context.Background(), bufferOf(make([]float64, 1000)))
	require.NoError(t, err)

	// an explicit zero is not replaced by the derived overlap
	assert.Equal(t, 64, features.HopSize)
	assert.Equal(t, 15, features.Frames())
}

func TestExtractor_SplitChannels(t *testing.T) {
	buffer := bufferOf(sine(640, 500, 0.5), sine(640, 1000, 0.5))

	cfg := testConfig()
	features, err := NewExtractor(cfg).Extract(context.Background(), buffer)
	require.NoError(t, err)
	assert.Len(t, features.Channels, 1)

	cfg.SplitChannels = true
	features, err = NewExtractor(cfg).Extract(context.Background(), buffer)
	require.NoError(t, err)
	require.Len(t, features.Channels, 2)
	assert.Len(t, features.Channels[0], 10)
	assert.Len(t, features.Channels[1], 10)
}

func TestExtractor_FrameFeatures(t *testing.T) {
	constant := make([]float64, 128)
	for i := range constant {
		constant[i] = 0.5
	}

	features, err := NewExtractor(testConfig()).Extract(context.Background(), bufferOf(constant))
	require.NoError(t, err)
	require.Equal(t, 2, features.Frames())

	for _, set := range features.Channels[0] {
		assert.InDelta(t, 16.0, set.Energy, 1e-9)
		assert.Equal(t, 0.0, set.ZeroCrossingRate)
		assert.Len(t, set.Spectrum, 32)
		assert.Greater(t, set.LowFreqContent, 0.0)
	}
}

func TestExtractor_Errors(t *testing.T) {
	_, err := NewExtractor(testConfig()).Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingBuffer)

	_, err = NewExtractor(testConfig()).Extract(context.Background(), &SampleBuffer{SampleRate: testSampleRate})
	assert.ErrorIs(t, err, ErrMissingBuffer)

	cfg := testConfig()
	cfg.WindowType = "kaiser"
	_, err = NewExtractor(cfg).Extract(context.Background(), bufferOf(make([]float64, 128)))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExtractor(testConfig()).Extract(ctx, bufferOf(make([]float64, 128)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize_GlobalMaximaAcrossChannels(t *testing.T) {
	features := &FeatureSet{
		Channels: [][]SpectrumFeatureSet{
			{
				{LowFreqContent: 1, ZeroCrossingRate: 2, Energy: 0},
				{LowFreqContent: 2, ZeroCrossingRate: 4, Energy: 0},
			},
			{
				{LowFreqContent: 4, ZeroCrossingRate: 1, Energy: 0},
			},
		},
	}

	maxima := FeatureMaxima(features)
	assert.Equal(t, Maxima{LowFreqContent: 4, ZeroCrossingRate: 4, Energy: 0}, maxima)

	vectors := Normalize(features)
	require.Len(t, vectors, 2)
	assert.Equal(t, []FeatureVector{{0.25, 0.5, 0}, {0.5, 1, 0}}, vectors[0])
	assert.Equal(t, []FeatureVector{{1, 0.25, 0}}, vectors[1])
}

func TestPipeline_NormalizationBound(t *testing.T) {
	result, err := NewPipeline(testConfig()).Run(context.Background(), changeBuffer(), testConfig().Settings)
	require.NoError(t, err)

	for _, ch := range result.Channels {
		for _, v := range ch.Features {
			for _, component := range v {
				assert.GreaterOrEqual(t, component, 0.0)
				assert.LessOrEqual(t, component, 1.0)
			}
		}
	}
}

func TestPipeline_SilentBuffer(t *testing.T) {
	result, err := NewPipeline(testConfig()).Run(context.Background(), bufferOf(make([]float64, 4096)), testConfig().Settings)
	require.NoError(t, err)
	require.Len(t, result.Channels, 1)

	ch := result.Channels[0]
	require.Len(t, ch.Features, 64)
	for i := range ch.Features {
		assert.Equal(t, FeatureVector{}, ch.Features[i])
		assert.Equal(t, 0.0, ch.Divergence[i])
		assert.False(t, math.IsNaN(ch.Divergence[i]))
	}
	assert.Empty(t, ch.Triggers)
}

func TestPipeline_ShortBufferYieldsEmptyOutput(t *testing.T) {
	result, err := NewPipeline(testConfig()).Run(context.Background(), bufferOf(make([]float64, 10)), testConfig().Settings)
	require.NoError(t, err)
	require.Len(t, result.Channels, 1)

	assert.Empty(t, result.Channels[0].Features)
	assert.Empty(t, result.Channels[0].Divergence)
	assert.Empty(t, result.Channels[0].Triggers)
	assert.Equal(t, 0, result.Frames())
	assert.Equal(t, make([]float64, 4), result.Bars(0, 4))
}

func TestPipeline_DetectsChange(t *testing.T) {
	result, err := NewPipeline(testConfig()).Run(context.Background(), changeBuffer(), testConfig().Settings)
	require.NoError(t, err)

	ch := result.Channels[0]
	require.Len(t, ch.Divergence, 125)
	assert.InDelta(t, 125.0, result.FrameRate, 1e-9)

	// the tone changes at sample 4000, inside frame 62
	found := false
	for _, trigger := range ch.Triggers {
		assert.GreaterOrEqual(t, trigger.Frame, 7, "no trigger before the window fills")
		if trigger.Frame >= 60 && trigger.Frame <= 66 {
			found = true
			assert.Equal(t, time.Duration(trigger.Frame)*8*time.Millisecond, trigger.Time)
			assert.Equal(t, ch.Divergence[trigger.Frame], trigger.Divergence)
		}
	}
	assert.True(t, found, "expected a trigger near the change, got %v", ch.Triggers)

	// the last ceil(0.05*125) = 7 frames are suppressed
	for i := 118; i < 125; i++ {
		assert.Equal(t, 0.0, ch.Divergence[i])
	}
	assert.Len(t, ch.Cooldown, 125)
}

func TestPipeline_Deterministic(t *testing.T) {
	pipeline := NewPipeline(testConfig())
	buffer := changeBuffer()

	first, err := pipeline.Run(context.Background(), buffer, testConfig().Settings)
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background(), buffer, testConfig().Settings)
	require.NoError(t, err)

	assert.Equal(t, first.Channels, second.Channels)
}

func TestPipeline_RollingSumsMatchFeatures(t *testing.T) {
	settings := testConfig().Settings
	result, err := NewPipeline(testConfig()).Run(context.Background(), changeBuffer(), settings)
	require.NoError(t, err)

	ch := result.Channels[0]
	k := 40
	var short, long FeatureVector
	for i := k - settings.ShortWindowSize + 1; i <= k; i++ {
		for j := range short {
			short[j] += ch.Features[i][j]
		}
	}
	for i := k - settings.WindowSize + 1; i <= k-settings.ShortWindowSize; i++ {
		for j := range long {
			long[j] += ch.Features[i][j]
		}
	}

	assert.InDeltaSlice(t, short.Slice(), ch.ShortSums[k].Slice(), 1e-9)
	assert.InDeltaSlice(t, long.Slice(), ch.LongSums[k].Slice(), 1e-9)
}

func TestPipeline_RejectsInvalidSettings(t *testing.T) {
	_, err := NewPipeline(testConfig()).Run(context.Background(), changeBuffer(), config.Settings{WindowSize: 4, ShortWindowSize: 4})
	assert.ErrorIs(t, err, config.ErrInvalidSettings)

	_, err = NewPipeline(testConfig()).Analyze(context.Background(), nil, testConfig().Settings)
	assert.ErrorIs(t, err, ErrMissingBuffer)
}

package syncpoint

import (
	"testing"
	"time"

	"github.com/RyanBlaney/audiosync/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Bars(t *testing.T) {
	r := &Result{Channels: []ChannelResult{{Divergence: []float64{0, 1, 2, 4}}}}

	assert.Equal(t, []float64{0.25, 1}, r.Bars(0, 2))
	assert.Equal(t, []float64{0, 0, 0.25, 0.25, 0.5, 0.5, 1, 1}, r.Bars(0, 8))
	assert.Nil(t, r.Bars(1, 4))
	assert.Nil(t, r.Bars(0, 0))

	silent := &Result{Channels: []ChannelResult{{Divergence: []float64{0, 0, 0}}}}
	assert.Equal(t, []float64{0, 0}, silent.Bars(0, 2))

	var missing *Result
	assert.Nil(t, missing.Bars(0, 2))
}

func TestResult_Stats(t *testing.T) {
	r := &Result{Channels: []ChannelResult{{Divergence: []float64{1, 3, 2}}}}

	stats := r.Stats(0)
	assert.InDelta(t, 2.0, stats.Mean, 1e-12)
	assert.InDelta(t, 1.0, stats.StdDev, 1e-12)
	assert.Equal(t, 3.0, stats.Max)
	assert.Equal(t, 1, stats.MaxAt)

	single := &Result{Channels: []ChannelResult{{Divergence: []float64{5}}}}
	assert.Equal(t, SeriesStats{Mean: 5, Max: 5}, single.Stats(0))

	assert.Equal(t, SeriesStats{}, r.Stats(3))
}

func TestResult_AllTriggers(t *testing.T) {
	r := &Result{Channels: []ChannelResult{
		{Triggers: []Trigger{{Channel: 0, Frame: 4}}},
		{Triggers: []Trigger{{Channel: 1, Frame: 2}, {Channel: 1, Frame: 9}}},
	}}

	assert.Equal(t, []Trigger{
		{Channel: 0, Frame: 4},
		{Channel: 1, Frame: 2},
		{Channel: 1, Frame: 9},
	}, r.AllTriggers())
}

func TestFeatureSet_FrameTiming(t *testing.T) {
	fs := &FeatureSet{SampleRate: 44100, HopSize: 441}

	assert.InDelta(t, 100.0, fs.FrameRate(), 1e-12)
	assert.Equal(t, 250*time.Millisecond, fs.FrameTime(25))
	assert.Equal(t, 0, fs.Frames())
}

func TestBufferFromAudio(t *testing.T) {
	assert.Nil(t, BufferFromAudio(nil))

	audio := &transcode.AudioData{
		Channels:   [][]float64{{1, 2}, {3, 4}},
		SampleRate: 2,
		Duration:   time.Second,
	}
	buffer := BufferFromAudio(audio)
	require.NotNil(t, buffer)
	assert.Equal(t, 2, buffer.NumChannels())
	assert.Equal(t, 2, buffer.Len())
	assert.Equal(t, time.Second, buffer.Duration)
}

func TestMemoryHost_Subscriptions(t *testing.T) {
	host := NewMemoryHost()
	assert.False(t, host.IsReady())
	assert.Equal(t, 0, host.Channels())
	assert.Nil(t, host.ChannelSamples(0))

	calls := 0
	unsubscribe := host.Subscribe(EventReady, func() { calls++ })

	host.Load(bufferOf([]float64{1, 2, 3}))
	assert.True(t, host.IsReady())
	assert.Equal(t, 1, calls)
	assert.Equal(t, []float64{1, 2, 3}, host.ChannelSamples(0))
	assert.Nil(t, host.ChannelSamples(1))

	unsubscribe()
	unsubscribe()
	host.Emit(EventReady)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, host.Subscribers(EventReady))
}

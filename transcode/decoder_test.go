package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, path string, sampleRate, channels int, data []int) {
	t.Helper()

	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	enc := wav.NewEncoder(out, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestDecodeWAVFile_Stereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// interleaved L/R frames
	writeTestWAV(t, path, 8000, 2, []int{16384, -16384, 0, 32767, -32768, 8192})

	data, err := DecodeWAVFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, data.SampleRate)
	require.Equal(t, 2, data.NumChannels())
	assert.Equal(t, 3, data.Length())
	assert.InDeltaSlice(t, []float64{0.5, 0, -1}, data.Channels[0], 1e-9)
	assert.InDeltaSlice(t, []float64{-0.5, 32767.0 / 32768.0, 0.25}, data.Channels[1], 1e-9)
	assert.Equal(t, time.Duration(3)*time.Second/8000, data.Duration)
}

func TestDecodeWAVFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff file"), 0o644))

	_, err := DecodeWAVFile(path)
	assert.Error(t, err)

	_, err = DecodeWAVFile(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestDecoder_DecodeFileNativeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	data := make([]int, 800)
	for i := range data {
		data[i] = int(16000 * math.Sin(float64(i)))
	}
	writeTestWAV(t, path, 8000, 1, data)

	cfg := DefaultDecoderConfig()
	cfg.FFmpegPath = "/nonexistent/ffmpeg"
	cfg.MaxDuration = 50 * time.Millisecond

	audioData, err := NewDecoder(cfg).DecodeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, audioData.NumChannels())
	assert.Equal(t, 400, audioData.Length())
	assert.Equal(t, 50*time.Millisecond, audioData.Duration)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream reset")
}

func TestDecoder_DecodeReaderInput(t *testing.T) {
	decoder := NewDecoder(nil)

	_, err := decoder.DecodeReader(context.Background(), bytes.NewReader(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty audio data")

	_, err = decoder.DecodeReader(context.Background(), failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream reset")

	cfg := DefaultDecoderConfig()
	cfg.FFprobePath = "/nonexistent/ffprobe"
	_, err = NewDecoder(cfg).DecodeReader(context.Background(), bytes.NewReader([]byte("RIFF")))
	assert.Error(t, err)
}

func TestParseFFprobeOutput(t *testing.T) {
	output := []byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"44100","channels":2,"duration":"12.5","bit_rate":"128000","codec_long_name":"MP3"}]}`)

	metadata, err := parseFFprobeOutput(output)
	require.NoError(t, err)
	assert.Equal(t, &AudioMetadata{
		SampleRate: 44100,
		Channels:   2,
		Codec:      "mp3",
		Duration:   12.5,
		Bitrate:    128000,
		Format:     "MP3",
	}, metadata)

	tests := map[string]string{
		"no streams": `{"streams":[]}`,
		"video":      `{"streams":[{"codec_type":"video","channels":2}]}`,
		"channels":   `{"streams":[{"codec_type":"audio","channels":0}]}`,
		"malformed":  `{"streams":`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseFFprobeOutput([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestBytesToFloat64(t *testing.T) {
	values := []float64{0.5, -1, 0.25}
	raw := make([]byte, 8*len(values)+3) // trailing partial sample is dropped
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}

	assert.Equal(t, values, bytesToFloat64(raw))
	assert.Nil(t, bytesToFloat64([]byte{1, 2}))
}

func TestDeinterleave(t *testing.T) {
	planar := Deinterleave([]float64{1, 2, 3, 4, 5, 6, 7}, 2)
	assert.Equal(t, [][]float64{{1, 3, 5}, {2, 4, 6}}, planar)

	mono := Deinterleave([]float64{1, 2}, 0)
	assert.Equal(t, [][]float64{{1, 2}}, mono)
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.TargetSampleRate = 22050
	cfg.MaxDuration = 1500 * time.Millisecond

	args := NewDecoder(cfg).buildFFmpegArgs("in.mp3", &AudioMetadata{SampleRate: 44100, Channels: 2})
	assert.Equal(t, []string{
		"-v", "error",
		"-i", "in.mp3",
		"-map", "0:a:0",
		"-vn",
		"-t", "1.500",
		"-f", "f64le",
		"-ac", "2",
		"-ar", "22050",
		"pipe:1",
	}, args)
}

func TestValidateConfig_MissingBinary(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.FFmpegPath = "/nonexistent/ffmpeg-binary"
	assert.Error(t, NewDecoder(cfg).ValidateConfig())
}

package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/audiosync/logging"
)

// AudioData holds decoded audio as one sample slice per channel
type AudioData struct {
	Channels   [][]float64   `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
	Source     string        `json:"source,omitempty"`
	Codec      string        `json:"codec,omitempty"`
}

// NumChannels returns the number of decoded channels
func (a *AudioData) NumChannels() int {
	return len(a.Channels)
}

// Length returns the samples per channel
func (a *AudioData) Length() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"` // 0 keeps the source rate
	TargetChannels   int           `json:"target_channels"`    // 0 keeps the source layout
	MaxDuration      time.Duration `json:"max_duration"`
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
	PreferNativeWAV  bool          `json:"prefer_native_wav"` // decode .wav without ffmpeg
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,
		TargetChannels:   0,
		MaxDuration:      0, // No limit
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          2 * time.Minute,
		PreferNativeWAV:  true,
	}
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Decoder handles audio decoding using FFmpeg, with a native WAV path
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile decodes an audio file into per-channel samples
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if d.config.PreferNativeWAV && strings.EqualFold(filepath.Ext(filename), ".wav") {
		audio, err := DecodeWAVFile(filename)
		if err == nil {
			logger.Debug("Decoded WAV natively", logging.Fields{
				"channels":    audio.NumChannels(),
				"sample_rate": audio.SampleRate,
			})
			return d.limit(audio), nil
		}
		logger.Warn("Native WAV decode failed, falling back to ffmpeg", logging.Fields{
			"error": err.Error(),
		})
	}

	metadata, err := d.probe(ctx, filename, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	output, err := d.run(ctx, d.buildFFmpegArgs(filename, metadata), nil)
	if err != nil {
		return nil, err
	}

	audio, err := d.processFFmpegOutput(output, metadata)
	if err != nil {
		return nil, err
	}
	audio.Source = filename
	return audio, nil
}

// DecodeReader decodes audio piped through ffmpeg's stdin
func (d *Decoder) DecodeReader(ctx context.Context, reader io.Reader) (*AudioData, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}

	metadata, err := d.probe(ctx, "pipe:0", data)
	if err != nil {
		return nil, err
	}

	output, err := d.run(ctx, d.buildFFmpegArgs("pipe:0", metadata), data)
	if err != nil {
		return nil, err
	}

	return d.processFFmpegOutput(output, metadata)
}

func (d *Decoder) probe(ctx context.Context, input string, stdin []byte) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		input,
	}

	probeCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, d.config.FFprobePath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	output, err := cmd.Output()
	if err != nil {
		return nil, commandError("ffprobe", err)
	}

	return parseFFprobeOutput(output)
}

func (d *Decoder) run(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	runCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.config.FFmpegPath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	d.logger.Debug("Running FFmpeg command", logging.Fields{
		"command": fmt.Sprintf("%s %s", d.config.FFmpegPath, strings.Join(args, " ")),
	})

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		return nil, commandError("ffmpeg", err)
	}

	d.logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_bytes": len(output),
		"decode_time":  time.Since(start).Seconds(),
	})

	return output, nil
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func commandError(tool string, err error) error {
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return fmt.Errorf("%s failed: %w, stderr: %s", tool, err, string(exitError.Stderr))
	}
	return fmt.Errorf("%s failed: %w", tool, err)
}

// outputLayout returns the channel count and sample rate ffmpeg should produce
func (d *Decoder) outputLayout(metadata *AudioMetadata) (int, int) {
	channels := metadata.Channels
	if d.config.TargetChannels > 0 {
		channels = d.config.TargetChannels
	}
	sampleRate := metadata.SampleRate
	if d.config.TargetSampleRate > 0 {
		sampleRate = d.config.TargetSampleRate
	}
	return channels, sampleRate
}

func (d *Decoder) buildFFmpegArgs(input string, metadata *AudioMetadata) []string {
	channels, sampleRate := d.outputLayout(metadata)

	args := []string{
		"-v", "error",
		"-i", input,
		"-map", "0:a:0",
		"-vn",
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}

	args = append(args,
		"-f", "f64le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	)

	return args
}

func (d *Decoder) processFFmpegOutput(output []byte, metadata *AudioMetadata) (*AudioData, error) {
	channels, sampleRate := d.outputLayout(metadata)

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	planar := Deinterleave(samples, channels)

	return &AudioData{
		Channels:   planar,
		SampleRate: sampleRate,
		Duration:   samplesDuration(len(planar[0]), sampleRate),
		Timestamp:  time.Now(),
		Codec:      metadata.Codec,
	}, nil
}

// limit trims natively decoded audio to MaxDuration
func (d *Decoder) limit(audio *AudioData) *AudioData {
	if d.config.MaxDuration <= 0 || audio.SampleRate <= 0 {
		return audio
	}

	maxSamples := int(d.config.MaxDuration * time.Duration(audio.SampleRate) / time.Second)
	if audio.Length() <= maxSamples {
		return audio
	}

	for i := range audio.Channels {
		audio.Channels[i] = audio.Channels[i][:maxSamples]
	}
	audio.Duration = d.config.MaxDuration
	return audio
}

func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100 // Fallback to common sample rate
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// bytesToFloat64 converts raw float64 little-endian bytes to samples
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		data = data[:len(data)-(len(data)%8)]
	}

	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// Deinterleave splits interleaved samples into one slice per channel,
// dropping a trailing partial frame
func Deinterleave(samples []float64, channels int) [][]float64 {
	channels = max(channels, 1)
	length := len(samples) / channels

	planar := make([][]float64, channels)
	for c := range planar {
		planar[c] = make([]float64, length)
	}

	for i := range length {
		for c := range channels {
			planar[c][i] = samples[i*channels+c]
		}
	}

	return planar
}

// samplesDuration returns the playing time of n samples per channel
func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// ValidateConfig checks that the configured ffmpeg binaries can be found
func (d *Decoder) ValidateConfig() error {
	if _, err := exec.LookPath(d.config.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	if _, err := exec.LookPath(d.config.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}
	return nil
}

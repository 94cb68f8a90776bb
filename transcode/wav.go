package transcode

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// DecodeWAVFile reads a PCM WAV file into per-channel samples in [-1, 1]
func DecodeWAVFile(filename string) (*AudioData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error reading WAV data: %w", err)
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid WAV format: %d channels at %d Hz", channels, sampleRate)
	}

	divisor, err := audioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	interleaved := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float64(v) / divisor
	}

	planar := Deinterleave(interleaved, channels)

	return &AudioData{
		Channels:   planar,
		SampleRate: sampleRate,
		Duration:   samplesDuration(len(planar[0]), sampleRate),
		Timestamp:  time.Now(),
		Source:     filename,
		Codec:      "pcm",
	}, nil
}

// audioDivisor returns the full-scale value for integer PCM at bitDepth
func audioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}

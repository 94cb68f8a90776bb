package temporal

import (
	"fmt"
	"iter"
	"math"
)

// Framer slices one channel into fixed-length, possibly overlapping frames
type Framer struct {
	signal    []float64
	frameSize int
	hopSize   int
}

// DefaultOverlap picks an overlap so that each of displayWidth columns maps to
// at least one frame. The result is clamped to [0, frameSize-1] so the hop
// stays positive. A non-positive displayWidth means no overlap.
func DefaultOverlap(frameSize, signalLength, displayWidth int) int {
	if displayWidth <= 0 || frameSize <= 1 {
		return 0
	}

	samplesPerColumn := float64(signalLength) / float64(displayWidth)
	overlap := int(math.Round(float64(frameSize) - samplesPerColumn))

	return max(0, min(overlap, frameSize-1))
}

// NewFramer creates a framer advancing by frameSize-overlap samples
func NewFramer(signal []float64, frameSize, overlap int) (*Framer, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive")
	}
	if overlap < 0 || overlap >= frameSize {
		return nil, fmt.Errorf("overlap (%d) must be in [0, %d)", overlap, frameSize)
	}

	return &Framer{
		signal:    signal,
		frameSize: frameSize,
		hopSize:   frameSize - overlap,
	}, nil
}

// HopSize returns the stride between frame start offsets
func (f *Framer) HopSize() int {
	return f.hopSize
}

// Count returns how many complete frames the signal holds
func (f *Framer) Count() int {
	if len(f.signal) < f.frameSize {
		return 0
	}
	return (len(f.signal)-f.frameSize)/f.hopSize + 1
}

// Frames yields (index, frame) pairs until the next frame would run past the
// end of the signal. Frames alias the signal and must not be modified.
// Every call starts again from the first frame.
func (f *Framer) Frames() iter.Seq2[int, []float64] {
	return func(yield func(int, []float64) bool) {
		index := 0
		for offset := 0; offset+f.frameSize <= len(f.signal); offset += f.hopSize {
			if !yield(index, f.signal[offset:offset+f.frameSize]) {
				return
			}
			index++
		}
	}
}

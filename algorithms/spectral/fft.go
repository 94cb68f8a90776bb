package spectral

import (
	"fmt"
	"math/cmplx"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Window names accepted by NewFFT
const (
	WindowRectangular = "rectangular"
	WindowHann        = "hann"
	WindowHamming     = "hamming"
	WindowBlackman    = "blackman"
	WindowBartlett    = "bartlett"
	WindowFlatTop     = "flattop"
)

// WindowFunc resolves a window name to its go-dsp coefficient generator
func WindowFunc(name string) (func(int) []float64, error) {
	switch strings.ToLower(name) {
	case WindowRectangular, "none", "":
		return window.Rectangular, nil
	case WindowHann, "hanning":
		return window.Hann, nil
	case WindowHamming:
		return window.Hamming, nil
	case WindowBlackman:
		return window.Blackman, nil
	case WindowBartlett:
		return window.Bartlett, nil
	case WindowFlatTop:
		return window.FlatTop, nil
	default:
		return nil, fmt.Errorf("unknown window type %q", name)
	}
}

// FFT turns fixed-size real frames into magnitude spectra
type FFT struct {
	size         int
	coefficients []float64
	scratch      []float64
}

// NewFFT creates a transform for frames of exactly size samples,
// windowed with the named window before the transform
func NewFFT(size int, windowType string) (*FFT, error) {
	if size < 2 {
		return nil, fmt.Errorf("fft size must be at least 2, got %d", size)
	}

	windowFn, err := WindowFunc(windowType)
	if err != nil {
		return nil, err
	}

	return &FFT{
		size:         size,
		coefficients: windowFn(size),
		scratch:      make([]float64, size),
	}, nil
}

// Size returns the frame length the transform expects
func (f *FFT) Size() int {
	return f.size
}

// Bins returns the number of magnitude bins Magnitude produces
func (f *FFT) Bins() int {
	return f.size / 2
}

// Compute computes Fast Fourier Transform using mjibson/go-dsp
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2
	return fft.FFTReal(x)
}

// Magnitude windows the frame and returns the positive-frequency magnitudes
// scaled by 2/N, DC included and Nyquist excluded. The frame is not modified.
// Not safe for concurrent use.
func (f *FFT) Magnitude(frame []float64) ([]float64, error) {
	if len(frame) != f.size {
		return nil, fmt.Errorf("frame length (%d) doesn't match fft size (%d)", len(frame), f.size)
	}

	for i, s := range frame {
		f.scratch[i] = s * f.coefficients[i]
	}

	result := f.Compute(f.scratch)

	scale := 2.0 / float64(f.size)
	spectrum := make([]float64, f.Bins())
	for i := range spectrum {
		spectrum[i] = scale * cmplx.Abs(result[i])
	}

	return spectrum, nil
}

package temporal

import (
	"math"
)

const (
	// DefaultCooldownDecay is the per-frame multiplicative decay used when no
	// frame rate or cooldown duration is known
	DefaultCooldownDecay = 0.998

	// DefaultCooldownPeak is the value the cooldown counter jumps to on a trigger
	DefaultCooldownPeak = 65535.0

	// DefaultTailFraction is the share of trailing frames forced to zero
	DefaultTailFraction = 0.05
)

// CooldownDecay derives the per-frame decay factor that brings the counter
// from peak down to 1 over cooldownSeconds at frameRate frames per second.
// It falls back to DefaultCooldownDecay when any input is unusable.
func CooldownDecay(cooldownSeconds, frameRate, peak float64) float64 {
	if cooldownSeconds <= 0 || frameRate <= 0 || peak <= 1 {
		return DefaultCooldownDecay
	}

	frames := cooldownSeconds * frameRate
	if frames < 1 {
		return DefaultCooldownDecay
	}

	return math.Pow(1/peak, 1/frames)
}

// SuppressTail returns a copy of series with its last ceil(fraction*len)
// entries set to zero
func SuppressTail(series []float64, fraction float64) []float64 {
	out := make([]float64, len(series))
	copy(out, series)

	if fraction <= 0 {
		return out
	}

	// 1e-9 keeps float noise such as 0.05*60 = 3.0000000000000004 from
	// claiming an extra entry
	tail := int(math.Ceil(float64(len(out))*fraction - 1e-9))
	tail = min(tail, len(out))
	clear(out[len(out)-tail:])

	return out
}

// ChangeDetector fires when a divergence value rises above a decaying
// cooldown threshold
type ChangeDetector struct {
	peak    float64
	decay   float64
	counter float64
}

// NewChangeDetector creates a detector whose counter resets to peak on each
// trigger and is multiplied by decay every frame while positive
func NewChangeDetector(peak, decay float64) *ChangeDetector {
	if peak <= 0 {
		peak = DefaultCooldownPeak
	}
	if decay <= 0 || decay >= 1 {
		decay = DefaultCooldownDecay
	}

	return &ChangeDetector{
		peak:  peak,
		decay: decay,
	}
}

// Step advances one frame. It returns whether the frame triggered and the
// threshold the value was compared against.
func (cd *ChangeDetector) Step(value float64) (bool, float64) {
	if cd.counter > 0 {
		cd.counter *= cd.decay
	}

	threshold := cd.counter
	if value > threshold {
		cd.counter = cd.peak
		return true, threshold
	}

	return false, threshold
}

// Observe decays the counter for a frame that must not trigger
func (cd *ChangeDetector) Observe() float64 {
	if cd.counter > 0 {
		cd.counter *= cd.decay
	}
	return cd.counter
}

// Reset clears the cooldown state
func (cd *ChangeDetector) Reset() {
	cd.counter = 0
}

// Detect runs the detector over series. Frames before start only decay the
// counter. It returns the triggered frame indices and the threshold seen by
// every frame.
func (cd *ChangeDetector) Detect(series []float64, start int) ([]int, []float64) {
	cd.Reset()

	var triggers []int
	thresholds := make([]float64, len(series))

	for i, value := range series {
		if i < start {
			thresholds[i] = cd.Observe()
			continue
		}

		triggered, threshold := cd.Step(value)
		thresholds[i] = threshold
		if triggered {
			triggers = append(triggers, i)
		}
	}

	return triggers, thresholds
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrInvalidSettings is matched by every *InvalidSettingsError
var ErrInvalidSettings = errors.New("invalid settings")

// InvalidSettingsError describes a rejected window configuration
type InvalidSettingsError struct {
	WindowSize      int
	ShortWindowSize int
	Reason          string
}

func (e *InvalidSettingsError) Error() string {
	return fmt.Sprintf("invalid settings (window_size=%d, short_window_size=%d): %s",
		e.WindowSize, e.ShortWindowSize, e.Reason)
}

func (e *InvalidSettingsError) Is(target error) bool {
	return target == ErrInvalidSettings
}

// WarmupMode controls the rolling sums before the history holds a full window
type WarmupMode string

const (
	WarmupExact     WarmupMode = "exact"
	WarmupBootstrap WarmupMode = "bootstrap"
)

// Settings are the user-tunable change detection parameters.
// Any change invalidates all rolling and cooldown state.
type Settings struct {
	WindowSize       int     `json:"window_size"`       // total frames in the rolling history
	ShortWindowSize  int     `json:"short_window_size"` // newest frames in the short window
	CooldownDuration float64 `json:"cooldown_duration"` // seconds
}

// DefaultSettings returns the settings the app ships with
func DefaultSettings() Settings {
	return Settings{
		WindowSize:       80,
		ShortWindowSize:  5,
		CooldownDuration: 15,
	}
}

// Validate enforces 1 <= ShortWindowSize < WindowSize
func (s Settings) Validate() error {
	switch {
	case s.WindowSize <= 0:
		return &InvalidSettingsError{s.WindowSize, s.ShortWindowSize, "window size must be positive"}
	case s.ShortWindowSize <= 0:
		return &InvalidSettingsError{s.WindowSize, s.ShortWindowSize, "short window size must be positive"}
	case s.ShortWindowSize >= s.WindowSize:
		return &InvalidSettingsError{s.WindowSize, s.ShortWindowSize, "short window must be smaller than the window"}
	case s.CooldownDuration < 0:
		return &InvalidSettingsError{s.WindowSize, s.ShortWindowSize, "cooldown duration cannot be negative"}
	}
	return nil
}

// LongWindowSize returns the number of frames behind the short window
func (s Settings) LongWindowSize() int {
	return s.WindowSize - s.ShortWindowSize
}

// Ratio scales a long-window sum to the short window's frame count
func (s Settings) Ratio() float64 {
	return float64(s.ShortWindowSize) / float64(s.LongWindowSize())
}

// OverlapAuto derives the frame overlap from DisplayWidth
const OverlapAuto = -1

// AnalyzerConfig holds everything a pipeline instance needs
type AnalyzerConfig struct {
	// Framing
	FFTSamples   int    `json:"fft_samples"`
	Overlap      int    `json:"overlap"`       // OverlapAuto derives it from DisplayWidth
	DisplayWidth int    `json:"display_width"` // columns the result is drawn onto
	WindowType   string `json:"window_type"`   // "hann", "hamming", "blackman", ...

	// Channel handling
	SplitChannels bool `json:"split_channels"` // false analyses channel 0 only

	// Detection
	Warmup          WarmupMode `json:"warmup"`
	LowBandFraction float64    `json:"low_band_fraction"`
	TailFraction    float64    `json:"tail_fraction"`
	CooldownPeak    float64    `json:"cooldown_peak"`

	// Scheduling
	Debounce    time.Duration `json:"debounce"`
	RefreshRate time.Duration `json:"refresh_rate"`

	Settings Settings `json:"settings"`
}

// DefaultAnalyzerConfig returns sensible defaults
func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		FFTSamples:      512,
		Overlap:         OverlapAuto,
		DisplayWidth:    1000,
		WindowType:      "hann",
		SplitChannels:   false,
		Warmup:          WarmupExact,
		LowBandFraction: 0.05,
		TailFraction:    0.05,
		CooldownPeak:    65535,
		Debounce:        250 * time.Millisecond,
		RefreshRate:     time.Second / 60,
		Settings:        DefaultSettings(),
	}
}

// Validate checks the framing and detection parameters and the settings
func (c *AnalyzerConfig) Validate() error {
	if c.FFTSamples < 2 {
		return fmt.Errorf("fft samples must be at least 2, got %d", c.FFTSamples)
	}
	if c.Overlap < OverlapAuto || c.Overlap >= c.FFTSamples {
		return fmt.Errorf("overlap (%d) must be %d or in [0, %d)", c.Overlap, OverlapAuto, c.FFTSamples)
	}
	if c.DisplayWidth < 0 {
		return fmt.Errorf("display width cannot be negative")
	}
	switch c.Warmup {
	case WarmupExact, WarmupBootstrap:
	default:
		return fmt.Errorf("unknown warmup mode %q", c.Warmup)
	}
	if c.LowBandFraction < 0 || c.LowBandFraction > 1 {
		return fmt.Errorf("low band fraction must be in [0, 1]")
	}
	if c.TailFraction < 0 || c.TailFraction >= 1 {
		return fmt.Errorf("tail fraction must be in [0, 1)")
	}
	if c.CooldownPeak <= 0 {
		return fmt.Errorf("cooldown peak must be positive")
	}
	if c.Debounce < 0 || c.RefreshRate < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	return c.Settings.Validate()
}

// LoadAnalyzerConfig reads a JSON file on top of DefaultAnalyzerConfig
func LoadAnalyzerConfig(path string) (*AnalyzerConfig, error) {
	cfg := DefaultAnalyzerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

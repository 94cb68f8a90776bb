package syncpoint

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/audiosync/algorithms/stats"
	"github.com/RyanBlaney/audiosync/algorithms/temporal"
	"github.com/RyanBlaney/audiosync/logging"
	"github.com/RyanBlaney/audiosync/syncpoint/config"
)

// Pipeline runs the normalize, rolling-window and detection stages over
// extracted features. A Pipeline holds no state between passes.
type Pipeline struct {
	config    *config.AnalyzerConfig
	extractor *Extractor
	logger    logging.Logger
}

// NewPipeline creates a pipeline. A nil config uses the defaults.
func NewPipeline(cfg *config.AnalyzerConfig) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultAnalyzerConfig()
	}

	return &Pipeline{
		config:    cfg,
		extractor: NewExtractor(cfg),
		logger: logging.WithFields(logging.Fields{
			"component": "syncpoint_pipeline",
		}),
	}
}

// Extract derives the raw feature set of buffer
func (p *Pipeline) Extract(ctx context.Context, buffer *SampleBuffer) (*FeatureSet, error) {
	return p.extractor.Extract(ctx, buffer)
}

// Run extracts features from buffer and analyses them with settings
func (p *Pipeline) Run(ctx context.Context, buffer *SampleBuffer, settings config.Settings) (*Result, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	features, err := p.Extract(ctx, buffer)
	if err != nil {
		return nil, err
	}

	return p.Analyze(ctx, features, settings)
}

// Analyze normalizes features and runs a fresh dual window and change
// detector over every channel. Each call starts from empty rolling and
// cooldown state.
func (p *Pipeline) Analyze(ctx context.Context, features *FeatureSet, settings config.Settings) (*Result, error) {
	if features == nil {
		return nil, ErrMissingBuffer
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger := p.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":          "Analyze",
		"window_size":       settings.WindowSize,
		"short_window_size": settings.ShortWindowSize,
		"cooldown":          settings.CooldownDuration,
	})

	result := &Result{
		Settings:   settings,
		SampleRate: features.SampleRate,
		FFTSamples: features.FFTSamples,
		HopSize:    features.HopSize,
		FrameRate:  features.FrameRate(),
		Duration:   features.Duration,
		Channels:   make([]ChannelResult, len(features.Channels)),
	}

	decay := temporal.CooldownDecay(settings.CooldownDuration, result.FrameRate, p.config.CooldownPeak)

	for ch, vectors := range Normalize(features) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		channel, err := p.analyzeChannel(ctx, ch, vectors, settings, decay, features)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		result.Channels[ch] = channel
	}

	logger.Debug("Analysis pass completed", logging.Fields{
		"frames":   result.Frames(),
		"triggers": len(result.AllTriggers()),
		"decay":    decay,
	})

	return result, nil
}

func (p *Pipeline) analyzeChannel(ctx context.Context, ch int, vectors []FeatureVector, settings config.Settings, decay float64, features *FeatureSet) (ChannelResult, error) {
	result := ChannelResult{
		Channel:    ch,
		Features:   vectors,
		ShortSums:  make([]FeatureVector, len(vectors)),
		LongSums:   make([]FeatureVector, len(vectors)),
		Divergence: make([]float64, len(vectors)),
	}

	if len(vectors) == 0 {
		return result, nil
	}

	window, err := stats.NewDualWindow(settings.WindowSize, settings.ShortWindowSize, featureCount, warmupMode(p.config.Warmup))
	if err != nil {
		return result, err
	}

	for i, v := range vectors {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}

		if err := window.Push(v.Slice()); err != nil {
			return result, err
		}
		result.ShortSums[i] = vectorFrom(window.Short())
		result.LongSums[i] = vectorFrom(window.Long())
		result.Divergence[i] = window.Divergence()
	}

	result.Divergence = temporal.SuppressTail(result.Divergence, p.config.TailFraction)

	// Before the history first fills the long window is incomplete, so those
	// frames only decay the counter.
	detector := temporal.NewChangeDetector(p.config.CooldownPeak, decay)
	frames, cooldown := detector.Detect(result.Divergence, settings.WindowSize-1)
	result.Cooldown = cooldown

	result.Triggers = make([]Trigger, 0, len(frames))
	for _, frame := range frames {
		result.Triggers = append(result.Triggers, Trigger{
			Channel:    ch,
			Frame:      frame,
			Time:       features.FrameTime(frame),
			Divergence: result.Divergence[frame],
		})
	}

	return result, nil
}

func warmupMode(mode config.WarmupMode) stats.WarmupMode {
	if mode == config.WarmupBootstrap {
		return stats.WarmupBootstrap
	}
	return stats.WarmupExact
}

package syncpoint

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/audiosync/logging"
	"github.com/RyanBlaney/audiosync/syncpoint/config"
)

// Analyzer binds a pipeline to a Host. It runs a full pass when the host
// reports a new buffer, re-analyses cached features on settings changes and
// redraws, and owns the playback marker task.
type Analyzer struct {
	host     Host
	config   *config.AnalyzerConfig
	pipeline *Pipeline
	logger   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending chan config.Settings
	// set while the scheduler goroutine applies settings and runs handlers
	scheduling atomic.Bool

	// passMu serializes passes; mu guards the fields below it
	passMu sync.Mutex
	mu     sync.Mutex

	settings    config.Settings
	features    *FeatureSet
	result      *Result
	cancelPass  context.CancelFunc
	passID      uint64
	unsubscribe []func()
	marker      *Marker
	initialized bool
	destroyed   bool

	resultHandlers []func(*Result)
	seekHandlers   []func(float64)
	errorHandlers  []func(error)
}

// New creates an analyzer over host. A nil cfg uses the defaults.
func New(host Host, cfg *config.AnalyzerConfig) (*Analyzer, error) {
	if host == nil {
		return nil, fmt.Errorf("host is required")
	}
	if cfg == nil {
		cfg = config.DefaultAnalyzerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Analyzer{
		host:     host,
		config:   cfg,
		pipeline: NewPipeline(cfg),
		logger: logging.WithFields(logging.Fields{
			"component": "syncpoint_analyzer",
		}),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(chan config.Settings, 1),
		settings: cfg.Settings,
	}

	a.wg.Add(1)
	go a.schedule()

	return a, nil
}

// Init subscribes to the host's lifecycle events. If the host already holds
// a buffer the first pass runs before Init returns.
func (a *Analyzer) Init() error {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return ErrDestroyed
	}
	if a.initialized {
		a.mu.Unlock()
		return nil
	}
	a.initialized = true
	a.unsubscribe = append(a.unsubscribe,
		a.host.Subscribe(EventReady, a.handleReady),
		a.host.Subscribe(EventRedraw, a.handleRedraw),
	)
	a.mu.Unlock()

	if reporter, ok := a.host.(ReadyReporter); ok && reporter.IsReady() {
		_, err := a.runPass(a.ctx, a.Settings(), true)
		return err
	}

	return nil
}

// Analyze runs a full pass over the host's current buffer with the current
// settings, re-extracting features
func (a *Analyzer) Analyze(ctx context.Context) (*Result, error) {
	return a.runPass(ctx, a.Settings(), true)
}

// Redraw re-analyses the cached features without re-extracting them
func (a *Analyzer) Redraw(ctx context.Context) (*Result, error) {
	return a.runPass(ctx, a.Settings(), false)
}

// ApplySettings validates and applies settings immediately, bypassing the
// debounce. Invalid settings leave the current ones in effect.
func (a *Analyzer) ApplySettings(ctx context.Context, settings config.Settings) (*Result, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil, ErrDestroyed
	}
	a.settings = settings
	a.mu.Unlock()

	return a.runPass(ctx, settings, false)
}

// UpdateSettings validates settings and schedules a pass after the debounce
// delay. A newer value supersedes any pending one and abandons the pass in
// flight. Invalid settings are rejected and the current ones stay in effect.
func (a *Analyzer) UpdateSettings(settings config.Settings) error {
	if err := settings.Validate(); err != nil {
		a.logger.Warn("Rejected settings", logging.Fields{
			"window_size":       settings.WindowSize,
			"short_window_size": settings.ShortWindowSize,
			"error":             err.Error(),
		})
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return ErrDestroyed
	}

	select {
	case <-a.pending:
	default:
	}
	a.pending <- settings

	if a.cancelPass != nil {
		a.cancelPass()
	}

	return nil
}

// Settings returns the settings currently in effect
func (a *Analyzer) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Result returns the last completed pass, or nil
func (a *Analyzer) Result() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// OnResult registers a callback for every completed pass
func (a *Analyzer) OnResult(fn func(*Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resultHandlers = append(a.resultHandlers, fn)
}

// OnSeek registers a callback for Click positions
func (a *Analyzer) OnSeek(fn func(float64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seekHandlers = append(a.seekHandlers, fn)
}

// OnError registers a callback for errors from event-driven and scheduled
// passes
func (a *Analyzer) OnError(fn func(error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorHandlers = append(a.errorHandlers, fn)
}

// Click converts a horizontal offset within a visualization of the given
// width into a position in [0, 1] and reports it to the seek handlers
func (a *Analyzer) Click(offsetX float64, width int) float64 {
	if width <= 0 {
		return 0
	}

	position := min(max(offsetX/float64(width), 0), 1)

	a.mu.Lock()
	handlers := slices.Clone(a.seekHandlers)
	a.mu.Unlock()

	for _, fn := range handlers {
		fn(position)
	}

	return position
}

// StartMarker starts the playback marker task, replacing a running one.
// The host must implement PlaybackClock.
func (a *Analyzer) StartMarker(fn MarkerFunc) error {
	clock, ok := a.host.(PlaybackClock)
	if !ok {
		return fmt.Errorf("host does not report playback time")
	}

	marker := NewMarker(clock, a.host.Duration, a.config.RefreshRate, fn)

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return ErrDestroyed
	}
	previous := a.marker
	a.marker = marker
	marker.Start(a.ctx)
	a.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}

	return nil
}

// Destroy abandons any pass, stops the scheduler and marker task and
// detaches from the host. It is safe to call more than once, including from
// a result or error handler. Called while the scheduler delivers a debounced
// pass, it returns without waiting for the scheduler goroutine, which exits
// once the handlers return.
func (a *Analyzer) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true

	if a.cancelPass != nil {
		a.cancelPass()
	}
	a.cancel()

	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	marker := a.marker
	a.marker = nil
	a.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	if marker != nil {
		marker.Stop()
	}

	if !a.scheduling.Load() {
		a.wg.Wait()
	}

	a.logger.Debug("Analyzer destroyed")
}

func (a *Analyzer) handleReady() {
	a.mu.Lock()
	a.features = nil
	a.mu.Unlock()

	if _, err := a.runPass(a.ctx, a.Settings(), true); err != nil {
		a.reportError(err)
	}
}

func (a *Analyzer) handleRedraw() {
	a.mu.Lock()
	cached := a.features != nil
	a.mu.Unlock()

	if !cached {
		a.logger.Debug("Redraw before first pass ignored")
		return
	}

	if _, err := a.Redraw(a.ctx); err != nil {
		a.reportError(err)
	}
}

func (a *Analyzer) schedule() {
	defer a.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		latest  config.Settings
		waiting bool
	)

	for {
		select {
		case <-a.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case settings := <-a.pending:
			latest = settings
			waiting = true

			if a.config.Debounce <= 0 {
				a.applyScheduled(latest)
				waiting = false
				continue
			}

			if timer == nil {
				timer = time.NewTimer(a.config.Debounce)
			} else {
				timer.Stop()
				timer.Reset(a.config.Debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if waiting {
				waiting = false
				a.applyScheduled(latest)
			}
		}
	}
}

func (a *Analyzer) applyScheduled(settings config.Settings) {
	a.scheduling.Store(true)
	defer a.scheduling.Store(false)

	_, err := a.ApplySettings(a.ctx, settings)
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingBuffer):
		a.logger.Debug("Settings stored until a buffer is loaded", logging.Fields{
			"window_size":       settings.WindowSize,
			"short_window_size": settings.ShortWindowSize,
		})
	default:
		a.reportError(err)
	}
}

func (a *Analyzer) reportError(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrDestroyed) {
		return
	}

	a.logger.Error(err, "Analysis pass failed")

	a.mu.Lock()
	handlers := slices.Clone(a.errorHandlers)
	a.mu.Unlock()

	for _, fn := range handlers {
		fn(err)
	}
}

// beginPass cancels the pass in flight and registers a new one
func (a *Analyzer) beginPass(parent context.Context) (context.Context, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return nil, nil, ErrDestroyed
	}
	if a.cancelPass != nil {
		a.cancelPass()
	}

	ctx, cancel := context.WithCancel(parent)
	a.passID++
	id := a.passID
	a.cancelPass = cancel

	done := func() {
		a.mu.Lock()
		if a.passID == id {
			a.cancelPass = nil
		}
		a.mu.Unlock()
		cancel()
	}

	return ctx, done, nil
}

func (a *Analyzer) runPass(ctx context.Context, settings config.Settings, reextract bool) (*Result, error) {
	passCtx, done, err := a.beginPass(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	result, handlers, err := a.pass(ctx, passCtx, settings, reextract)
	if err != nil {
		return nil, err
	}

	// handlers run outside passMu so they may start passes or Destroy
	for _, fn := range handlers {
		fn(result)
	}

	return result, nil
}

// pass computes one result under passMu and returns it with the result
// handlers registered at completion
func (a *Analyzer) pass(ctx, passCtx context.Context, settings config.Settings, reextract bool) (*Result, []func(*Result), error) {
	a.passMu.Lock()
	defer a.passMu.Unlock()

	if err := passCtx.Err(); err != nil {
		return nil, nil, err
	}

	logger := a.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":  "runPass",
		"reextract": reextract,
	})

	a.mu.Lock()
	features := a.features
	a.mu.Unlock()

	if reextract || features == nil {
		buffer, err := a.buffer()
		if err != nil {
			return nil, nil, err
		}

		features, err = a.pipeline.Extract(passCtx, buffer)
		if err != nil {
			return nil, nil, err
		}
	}

	result, err := a.pipeline.Analyze(passCtx, features, settings)
	if err != nil {
		return nil, nil, err
	}

	a.mu.Lock()
	if err := passCtx.Err(); err != nil {
		a.mu.Unlock()
		logger.Debug("Pass abandoned")
		return nil, nil, err
	}
	a.features = features
	a.result = result
	handlers := slices.Clone(a.resultHandlers)
	a.mu.Unlock()

	logger.Info("Analysis pass completed", logging.Fields{
		"frames":   result.Frames(),
		"triggers": len(result.AllTriggers()),
	})

	return result, handlers, nil
}

// buffer snapshots the host's decoded channels
func (a *Analyzer) buffer() (*SampleBuffer, error) {
	channels := a.host.Channels()
	if channels <= 0 {
		return nil, ErrMissingBuffer
	}

	buffer := &SampleBuffer{
		Channels:   make([][]float64, channels),
		SampleRate: a.host.SampleRate(),
		Duration:   a.host.Duration(),
	}
	for ch := range channels {
		buffer.Channels[ch] = a.host.ChannelSamples(ch)
	}

	if buffer.Channels[0] == nil || buffer.SampleRate <= 0 {
		return nil, ErrMissingBuffer
	}

	return buffer, nil
}

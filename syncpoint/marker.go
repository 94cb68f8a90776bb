package syncpoint

import (
	"context"
	"sync"
	"time"
)

// MarkerFunc receives the playhead as a fraction of the buffer duration
type MarkerFunc func(position float64)

// Marker periodically reports the playback position until stopped
type Marker struct {
	clock    PlaybackClock
	duration func() time.Duration
	interval time.Duration
	fn       MarkerFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMarker creates a marker task. A non-positive interval defaults to 60 Hz.
func NewMarker(clock PlaybackClock, duration func() time.Duration, interval time.Duration, fn MarkerFunc) *Marker {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Marker{
		clock:    clock,
		duration: duration,
		interval: interval,
		fn:       fn,
	}
}

// Position returns CurrentTime/Duration clamped to [0, 1]
func (m *Marker) Position() float64 {
	total := m.duration()
	if total <= 0 {
		return 0
	}
	position := float64(m.clock.CurrentTime()) / float64(total)
	return min(max(position, 0), 1)
}

// Start runs the task until ctx is cancelled or Stop is called. Starting a
// running marker does nothing.
func (m *Marker) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go m.run(ctx, m.done)
}

func (m *Marker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.fn != nil {
				m.fn(m.Position())
			}
		}
	}
}

// Stop cancels the task and waits for it to exit
func (m *Marker) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

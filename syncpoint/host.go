package syncpoint

import (
	"sync"
	"time"

	"github.com/RyanBlaney/audiosync/transcode"
)

// Event is a lifecycle notification published by a Host
type Event string

const (
	// EventReady fires once a buffer is decoded and safe to analyse
	EventReady Event = "ready"

	// EventRedraw asks for the current result to be re-rendered without
	// re-deriving features
	EventRedraw Event = "redraw"
)

// Host is the waveform/playback collaborator the analyzer reads from
type Host interface {
	Channels() int
	ChannelSamples(channel int) []float64
	SampleRate() int
	Duration() time.Duration
	Subscribe(event Event, callback func()) (unsubscribe func())
}

// PlaybackClock is implemented by hosts that can report the playhead
type PlaybackClock interface {
	CurrentTime() time.Duration
}

// ReadyReporter is implemented by hosts that can tell whether a buffer is
// already loaded
type ReadyReporter interface {
	IsReady() bool
}

// MemoryHost is a Host over an in-memory buffer
type MemoryHost struct {
	mu          sync.RWMutex
	buffer      *SampleBuffer
	position    time.Duration
	nextID      int
	subscribers map[Event]map[int]func()
}

// NewMemoryHost creates an empty host. Call Load to supply a buffer.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		subscribers: make(map[Event]map[int]func()),
	}
}

// BufferFromAudio wraps decoded audio as a SampleBuffer
func BufferFromAudio(audio *transcode.AudioData) *SampleBuffer {
	if audio == nil {
		return nil
	}
	return &SampleBuffer{
		Channels:   audio.Channels,
		SampleRate: audio.SampleRate,
		Duration:   audio.Duration,
	}
}

// Load replaces the buffer and publishes EventReady
func (h *MemoryHost) Load(buffer *SampleBuffer) {
	h.mu.Lock()
	h.buffer = buffer
	h.position = 0
	h.mu.Unlock()

	h.Emit(EventReady)
}

// IsReady reports whether a buffer is loaded
func (h *MemoryHost) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buffer != nil
}

func (h *MemoryHost) Channels() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.buffer == nil {
		return 0
	}
	return h.buffer.NumChannels()
}

func (h *MemoryHost) ChannelSamples(channel int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.buffer == nil || channel < 0 || channel >= h.buffer.NumChannels() {
		return nil
	}
	return h.buffer.Channels[channel]
}

func (h *MemoryHost) SampleRate() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.buffer == nil {
		return 0
	}
	return h.buffer.SampleRate
}

func (h *MemoryHost) Duration() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.buffer == nil {
		return 0
	}
	return h.buffer.Duration
}

// SetPosition moves the playhead
func (h *MemoryHost) SetPosition(position time.Duration) {
	h.mu.Lock()
	h.position = position
	h.mu.Unlock()
}

func (h *MemoryHost) CurrentTime() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.position
}

// Subscribe registers callback for event. The returned func removes it and
// is safe to call more than once.
func (h *MemoryHost) Subscribe(event Event, callback func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[event] == nil {
		h.subscribers[event] = make(map[int]func())
	}
	id := h.nextID
	h.nextID++
	h.subscribers[event][id] = callback

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers[event], id)
	}
}

// Subscribers returns how many callbacks are registered for event
func (h *MemoryHost) Subscribers(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[event])
}

// Emit calls every subscriber of event outside the lock
func (h *MemoryHost) Emit(event Event) {
	h.mu.RLock()
	callbacks := make([]func(), 0, len(h.subscribers[event]))
	for _, cb := range h.subscribers[event] {
		callbacks = append(callbacks, cb)
	}
	h.mu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}

package syncpoint

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockHost implements Host for testing
type MockHost struct {
	mock.Mock
}

func (m *MockHost) Channels() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockHost) ChannelSamples(channel int) []float64 {
	args := m.Called(channel)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]float64)
}

func (m *MockHost) SampleRate() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockHost) Duration() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockHost) Subscribe(event Event, callback func()) func() {
	args := m.Called(event)
	return args.Get(0).(func())
}

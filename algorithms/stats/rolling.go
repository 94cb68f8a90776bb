package stats

import (
	"fmt"

	"github.com/RyanBlaney/audiosync/algorithms/common"
	"gonum.org/v1/gonum/floats"
)

// WarmupMode selects how the sums behave before the history is full
type WarmupMode int

const (
	// WarmupExact keeps true partial sums from the first vector on, so the
	// sums are exact window sums at every index
	WarmupExact WarmupMode = iota

	// WarmupBootstrap sets both sums to the newest vector until the history
	// fills. Later pushes update the sums incrementally, so the offset left
	// by the bootstrap values stays in both sums for good.
	WarmupBootstrap
)

// DualWindow maintains two adjacent, non-overlapping rolling sums over a
// vector sequence: the short sum covers the newest shortSize vectors, the
// long sum the windowSize-shortSize vectors immediately behind them. Each
// Push costs O(dim) regardless of window size.
type DualWindow struct {
	windowSize int
	shortSize  int
	dim        int
	mode       WarmupMode

	history *common.VectorHistory
	short   []float64
	long    []float64
}

// NewDualWindow creates a dual window over dim-dimensional vectors
func NewDualWindow(windowSize, shortSize, dim int, mode WarmupMode) (*DualWindow, error) {
	if shortSize < 1 || shortSize >= windowSize {
		return nil, fmt.Errorf("short window (%d) must be in [1, %d)", shortSize, windowSize)
	}
	if dim < 1 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	return &DualWindow{
		windowSize: windowSize,
		shortSize:  shortSize,
		dim:        dim,
		mode:       mode,
		history:    common.NewVectorHistory(windowSize),
		short:      make([]float64, dim),
		long:       make([]float64, dim),
	}, nil
}

// Push adds v as the newest vector and updates both sums
func (dw *DualWindow) Push(v []float64) error {
	if len(v) != dw.dim {
		return fmt.Errorf("vector length (%d) doesn't match dimension (%d)", len(v), dw.dim)
	}

	current := make([]float64, dw.dim)
	copy(current, v)

	if !dw.history.IsFull() {
		dw.history.PushFront(current)
		dw.warmup(current)
		return nil
	}

	// the vector leaving the short window for the long one sits at lag
	// shortSize once current is in front
	crossing := dw.history.At(dw.shortSize - 1)
	dropped := dw.history.PushFront(current)

	floats.Sub(dw.short, crossing)
	floats.Add(dw.short, current)

	floats.Sub(dw.long, dropped)
	floats.Add(dw.long, crossing)

	return nil
}

func (dw *DualWindow) warmup(current []float64) {
	switch dw.mode {
	case WarmupBootstrap:
		copy(dw.short, current)
		copy(dw.long, current)
	default:
		floats.Add(dw.short, current)
		if crossing := dw.history.At(dw.shortSize); crossing != nil {
			floats.Sub(dw.short, crossing)
			floats.Add(dw.long, crossing)
		}
	}
}

// Short returns a copy of the short-window sum
func (dw *DualWindow) Short() []float64 {
	return append([]float64(nil), dw.short...)
}

// Long returns a copy of the long-window sum
func (dw *DualWindow) Long() []float64 {
	return append([]float64(nil), dw.long...)
}

// Ratio converts the long sum to the short sum's implicit count:
// shortSize / (windowSize - shortSize)
func (dw *DualWindow) Ratio() float64 {
	return float64(dw.shortSize) / float64(dw.windowSize-dw.shortSize)
}

// Divergence returns the quartic distance between the short sum and the
// ratio-scaled long sum
func (dw *DualWindow) Divergence() float64 {
	return ScaledDivergence(dw.short, dw.long, dw.Ratio())
}

// Warm reports whether the history holds a full window
func (dw *DualWindow) Warm() bool {
	return dw.history.IsFull()
}

// Len returns the number of vectors in the history
func (dw *DualWindow) Len() int {
	return dw.history.Len()
}

// Reset discards the history and zeroes both sums
func (dw *DualWindow) Reset() {
	dw.history.Clear()
	for i := range dw.short {
		dw.short[i] = 0
		dw.long[i] = 0
	}
}

package common

// VectorHistory is a bounded deque of vectors ordered most-recent-first,
// backed by a circular buffer
type VectorHistory struct {
	buffer [][]float64
	size   int
	head   int // slot of the most recent vector
	count  int
}

// NewVectorHistory creates a history holding at most size vectors
func NewVectorHistory(size int) *VectorHistory {
	size = max(size, 1)
	return &VectorHistory{
		buffer: make([][]float64, size),
		size:   size,
	}
}

// PushFront inserts v as the most recent vector. When the history is full the
// oldest vector is evicted and returned, otherwise nil is returned.
func (vh *VectorHistory) PushFront(v []float64) []float64 {
	var evicted []float64

	vh.head = (vh.head - 1 + vh.size) % vh.size
	if vh.count == vh.size {
		// the new head slot is the old tail
		evicted = vh.buffer[vh.head]
	} else {
		vh.count++
	}
	vh.buffer[vh.head] = v

	return evicted
}

// At returns the vector lag positions behind the most recent one (lag 0),
// or nil when lag is out of range
func (vh *VectorHistory) At(lag int) []float64 {
	if lag < 0 || lag >= vh.count {
		return nil
	}
	return vh.buffer[(vh.head+lag)%vh.size]
}

// Len returns the number of stored vectors
func (vh *VectorHistory) Len() int {
	return vh.count
}

// Cap returns the maximum number of stored vectors
func (vh *VectorHistory) Cap() int {
	return vh.size
}

// IsFull returns true if the history is at capacity
func (vh *VectorHistory) IsFull() bool {
	return vh.count == vh.size
}

// Clear empties the history
func (vh *VectorHistory) Clear() {
	for i := range vh.buffer {
		vh.buffer[i] = nil
	}
	vh.head = 0
	vh.count = 0
}

package syncpoint

import "errors"

var (
	// ErrMissingBuffer is returned when a pass is requested before the host
	// has a decoded buffer
	ErrMissingBuffer = errors.New("no decoded sample buffer available")

	// ErrDestroyed is returned by an analyzer after Destroy
	ErrDestroyed = errors.New("analyzer destroyed")
)

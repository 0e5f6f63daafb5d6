package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrStopped = errors.New("queue consumer stopped")
	ErrFull    = errors.New("queue full")
)

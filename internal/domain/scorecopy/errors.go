package scorecopy

import "errors"

// Sentinel kinds for score copy errors.
var (
	ErrNoPreviousReport = errors.New("no previous report")
	ErrCopyFailed       = errors.New("score copy failed")
)

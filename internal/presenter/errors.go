package presenter

import "errors"

// Sentinel kinds for session errors.
var (
	ErrClosed         = errors.New("presentation closed")
	ErrNoClient       = errors.New("no client on screen")
	ErrSaveInProgress = errors.New("score save already in progress")
	ErrUnknownClient  = errors.New("client not in the presentation")
	ErrNotApplicable  = errors.New("metric does not apply to client")
)

package seed

import "errors"

// Sentinel kinds for fixture errors.
var (
	ErrInvalidFixture   = errors.New("invalid fixture")
	ErrUnknownReference = errors.New("unknown reference")
)

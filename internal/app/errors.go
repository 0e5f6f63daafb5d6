package service

import (
	"errors"

	"github.com/okian/healthreview/internal/adapters/repository"
)

// Sentinel kinds returned by the Service. Callers match them with errors.Is.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotApplicable  = errors.New("metric does not apply to client")
	ErrBackpressure   = errors.New("score write queue is full")
	ErrNotFound       = repository.ErrNotFound
)

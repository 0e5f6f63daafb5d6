package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/healthreview/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Error codes carried in the JSON error body.
const (
	CodeBadRequest    = "bad_request"
	CodeNotFound      = "not_found"
	CodeNotApplicable = "not_applicable"
	CodeBackpressure  = "backpressure"
	CodeTimeout       = "timeout"
	CodeInternal      = "internal_error"
)

// NewKind returns kind annotated with op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind annotates err with op and kind so both match errors.Is.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Wrap annotates err with op.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// classify maps service errors to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrNotApplicable):
		return http.StatusUnprocessableEntity, CodeNotApplicable
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, CodeBackpressure
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, CodeInternal
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	}
	return http.StatusInternalServerError, CodeInternal
}

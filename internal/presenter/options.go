package presenter

import (
	"time"

	"github.com/okian/healthreview/pkg/logger"
)

// Option configures a Session.
type Option func(*Session)

// WithCopiedFlagTTL sets how long the copied-from-last-week flag stays up.
func WithCopiedFlagTTL(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.copiedTTL = d
		}
	}
}

// WithOnClose registers the callback invoked once when the presentation exits.
func WithOnClose(fn func()) Option {
	return func(s *Session) {
		s.onClose = fn
	}
}

// WithOnChange registers the callback invoked when state changes outside a
// caller's own request, e.g. when the copied flag expires.
func WithOnChange(fn func()) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

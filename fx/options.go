package fx

import (
	"log/slog"
	"time"
)

type Option func(c *Converter)

// WithLogger specifies the logger for the converter
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithClock overrides the wall clock used for cache expiry
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		c.now = now
	}
}

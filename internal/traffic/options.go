package traffic

import (
	"log/slog"
	"time"
)

// Clock supplies wall-clock time to the retention cleanup.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Option configures a store.
type Option func(*options)

type options struct {
	logger *slog.Logger
	clock  Clock
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		clock:  SystemClock{},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for background failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used to compute the retention cutoff.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

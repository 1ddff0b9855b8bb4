package tickwheel

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultResolution is the wall-clock length of one tick.
	DefaultResolution = 10 * time.Millisecond

	defaultErrorBuffer  = 64
	defaultErrorLogRate = 1
)

// Clock returns the current time. Tests replace it to drive Update deterministically.
type Clock func() time.Time

// Options holds the settings shared by Wheel and Driver.
type Options struct {
	Logger     zerolog.Logger
	Clock      Clock
	Resolution time.Duration
	// ErrorBuffer is the capacity of Driver.Errors().
	ErrorBuffer int
	// ErrorLogRate is the number of callback failures per second the Driver logs.
	ErrorLogRate int
	// OnError receives every callback failure seen by a Driver.
	OnError func(error)
}

// NewOptions creates options with defaults.
func NewOptions(opts ...Option) Options {
	var options = Options{
		Logger:       zerolog.Nop(),
		Clock:        time.Now,
		Resolution:   DefaultResolution,
		ErrorBuffer:  defaultErrorBuffer,
		ErrorLogRate: defaultErrorLogRate,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// Option is for setting options.
type Option func(*Options)

// WithLogger sets logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClock sets the clock used by Update and ScheduleAt.
// A nil clock is ignored.
func WithClock(clock Clock) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithResolution sets the tick length, must be greater than 0.
// If not, it will be ignored.
func WithResolution(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Resolution = d
		}
	}
}

// WithErrorBuffer sets the capacity of the driver error channel.
// Negative values are ignored, zero makes the channel unbuffered
// which means every error is dropped unless a receiver is waiting.
func WithErrorBuffer(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.ErrorBuffer = n
		}
	}
}

// WithErrorLogRate sets how many callback failures per second get logged.
// Values below 1 are ignored.
func WithErrorLogRate(perSecond int) Option {
	return func(o *Options) {
		if perSecond > 0 {
			o.ErrorLogRate = perSecond
		}
	}
}

// WithErrorHandler sets a hook that receives every callback failure.
// The driver calls it asynchronously, so it may call back into the driver.
func WithErrorHandler(fn func(error)) Option {
	return func(o *Options) {
		o.OnError = fn
	}
}

package tickwheel

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a delay is not below MaxDuration.
	ErrOutOfRange = errors.New("tickwheel: delay out of range")
	// ErrNilCallback is returned when scheduling a nil callback.
	ErrNilCallback = errors.New("tickwheel: nil callback")
	// ErrStopped is returned by a Driver that has been stopped.
	ErrStopped = errors.New("tickwheel: driver stopped")
	// ErrCallbackPanic is the cause of a CallbackError built from a recovered panic.
	ErrCallbackPanic = errors.New("tickwheel: callback panicked")
	// ErrReentrantAdvance is returned when Advance or Update is called from inside a callback.
	ErrReentrantAdvance = errors.New("tickwheel: advance called from a callback")
)

// CallbackError reports a timer callback that failed while its tick was fired.
// Use multierr.Errors to split the error returned by Advance or Update into
// individual CallbackError values.
type CallbackError struct {
	// TimerID identifies the timer whose callback failed.
	TimerID uint64
	// Tick is the elapsed tick count the timer fired at.
	Tick uint64
	// Err is the error returned (or the panic recovered) from the callback.
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("tickwheel: timer %d failed at tick %d: %v", e.TimerID, e.Tick, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func outOfRange(delay uint64) error {
	return fmt.Errorf("%w: %d ticks (max %d)", ErrOutOfRange, delay, MaxDuration-1)
}

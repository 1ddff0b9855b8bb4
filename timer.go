package tickwheel

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	timerInactive int32 = iota
	timerActive
)

// Callback is invoked once when a timer expires.
type Callback func() error

// Timer is the handle returned by Schedule. It identifies a pending timeout
// for cancellation only; the wheel keeps ownership of the timer until it
// fires or is discarded.
type Timer struct {
	id uint64
	// delay is the requested tick count, never mutated after creation.
	delay uint64
	// due is the elapsed tick value at which the firing advance starts.
	due      uint64
	callback Callback
	// active is the tombstone flag (use atomic operations).
	active int32
	// deadline is only used by Driver to place queued timers.
	deadline time.Time
}

func newTimer(id, delay uint64, cb Callback) *Timer {
	return &Timer{
		id:       id,
		delay:    delay,
		callback: cb,
		active:   timerActive,
	}
}

// ID returns the identifier assigned to the timer when it was scheduled.
func (t *Timer) ID() uint64 {
	return t.id
}

// Delay returns the tick count the timer was scheduled with.
func (t *Timer) Delay() uint64 {
	return t.delay
}

// Active reports whether the timer has neither fired nor been cancelled.
func (t *Timer) Active() bool {
	return atomic.LoadInt32(&t.active) == timerActive
}

// deactivate flips the tombstone and reports whether this call did it.
// Fire and cancel both go through here, so only one of them wins.
func (t *Timer) deactivate() bool {
	return atomic.CompareAndSwapInt32(&t.active, timerActive, timerInactive)
}

func (t *Timer) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()

	return t.callback()
}

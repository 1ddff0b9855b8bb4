package tickwheel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jiansoft/robin"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

// Driver owns a Wheel and runs it on a background goroutine.
//
// Schedule and Cancel are safe from any goroutine, callbacks included:
// new timers are handed to the owning goroutine through a queue and placed
// after the next Update, relative to the wheel's own clock reference, so a
// timer never fires before its deadline. A queued timer whose deadline no
// longer fits the wheel at that point is cancelled and reported instead.
// Callback failures are logged, published on Errors() and passed to the
// WithErrorHandler hook.
type Driver struct {
	wheel   *Wheel
	limiter *rate.Limiter
	errCh   chan error

	// mu guards pending
	mu      sync.Mutex
	pending []*Timer

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex
	stopCh    chan struct{}
	wg        sync.WaitGroup

	// running/stopped/ticking/dropped use atomic operations
	running int32
	stopped int32
	ticking int32
	dropped int64
}

// NewDriver creates a Driver. Call Start to begin ticking.
func NewDriver(opts ...Option) *Driver {
	w := New(opts...)

	return &Driver{
		wheel:   w,
		limiter: rate.NewLimiter(rate.Limit(w.ErrorLogRate), w.ErrorLogRate),
		errCh:   make(chan error, w.ErrorBuffer),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the ticking goroutine. It is a no-op when already running
// or after Stop.
func (d *Driver) Start() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if atomic.LoadInt32(&d.stopped) == 1 || atomic.LoadInt32(&d.running) == 1 {
		return
	}
	atomic.StoreInt32(&d.running, 1)

	d.wheel.ref = d.wheel.Clock()
	d.wheel.Logger.Info().Dur("resolution", d.wheel.Resolution).Msg("timing wheel driver started")

	d.wg.Add(1)
	go d.run()
}

// Stop halts the ticking goroutine. Pending timers never fire afterwards,
// Errors() is closed and Schedule returns ErrStopped. Calling Stop more than
// once is safe.
//
// Stop waits for the goroutine to exit, except while a tick is running its
// callbacks: a callback may call Stop, and the goroutine then exits once
// that tick completes.
func (d *Driver) Stop() {
	d.lifecycle.Lock()
	if atomic.LoadInt32(&d.stopped) == 1 {
		d.lifecycle.Unlock()
		return
	}
	atomic.StoreInt32(&d.stopped, 1)

	if atomic.SwapInt32(&d.running, 0) == 0 {
		// never started, so nothing else can send on errCh
		close(d.errCh)
		d.lifecycle.Unlock()
		d.wheel.Logger.Info().Msg("timing wheel driver stopped")
		return
	}
	close(d.stopCh)
	d.lifecycle.Unlock()

	// a callback calling Stop from inside a tick must not wait for itself
	if atomic.LoadInt32(&d.ticking) == 0 {
		d.wg.Wait()
	}
}

// IsRunning reports whether the ticking goroutine is active.
func (d *Driver) IsRunning() bool {
	return atomic.LoadInt32(&d.running) == 1
}

// Schedule queues cb to run once d has elapsed, rounded up to whole ticks.
// The range check happens here, so an out-of-range delay never reaches the
// wheel.
func (d *Driver) Schedule(delay time.Duration, cb Callback) (*Timer, error) {
	if atomic.LoadInt32(&d.stopped) == 1 {
		return nil, ErrStopped
	}
	if cb == nil {
		return nil, ErrNilCallback
	}

	ticks := d.wheel.ticks(delay)
	if ticks >= MaxDuration {
		return nil, outOfRange(ticks)
	}

	t := d.wheel.newTimer(ticks, cb)
	t.deadline = d.wheel.Clock().Add(delay)

	d.mu.Lock()
	d.pending = append(d.pending, t)
	d.mu.Unlock()

	return t, nil
}

// ScheduleAt queues cb to run at deadline.
func (d *Driver) ScheduleAt(deadline time.Time, cb Callback) (*Timer, error) {
	return d.Schedule(deadline.Sub(d.wheel.Clock()), cb)
}

// Cancel deactivates t, see Wheel.Cancel.
func (d *Driver) Cancel(t *Timer) bool {
	return d.wheel.Cancel(t)
}

// Errors returns the channel callback failures are published on. Errors are
// dropped when nobody keeps up with it. The channel is closed by Stop.
func (d *Driver) Errors() <-chan error {
	return d.errCh
}

// Statistics returns a snapshot of the wheel counters plus the hand-off
// queue length and the number of dropped errors.
func (d *Driver) Statistics() Statistics {
	s := d.wheel.Statistics()

	d.mu.Lock()
	s.queued = len(d.pending)
	d.mu.Unlock()

	s.dropped = atomic.LoadInt64(&d.dropped)
	return s
}

func (d *Driver) run() {
	defer d.wg.Done()
	defer func() {
		close(d.errCh)
		d.wheel.Logger.Info().Uint64("elapsed", d.wheel.Elapsed()).Msg("timing wheel driver stopped")
	}()

	ticker := time.NewTicker(d.wheel.Resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if atomic.LoadInt32(&d.stopped) == 1 {
				return
			}
			d.tick()
		case <-d.stopCh:
			return
		}
	}
}

// tick catches the wheel up with the clock, then places queued timers.
func (d *Driver) tick() {
	atomic.StoreInt32(&d.ticking, 1)
	err := d.wheel.Update()
	atomic.StoreInt32(&d.ticking, 0)

	if err != nil {
		d.report(err)
	}

	d.drain()
}

func (d *Driver) drain() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	w := d.wheel
	for _, t := range pending {
		if !t.Active() {
			continue
		}

		// 以輪子自己的時間基準換算，確保不會提早觸發
		delay := w.ticks(t.deadline.Sub(w.ref))
		if delay >= MaxDuration {
			if t.deactivate() {
				d.report(fmt.Errorf("tickwheel: timer %d: %w", t.ID(), outOfRange(delay)))
			}
			continue
		}
		w.insert(t, delay)
	}
}

func (d *Driver) report(err error) {
	onError := d.wheel.OnError

	for _, e := range multierr.Errors(err) {
		if d.limiter.Allow() {
			d.wheel.Logger.Warn().Err(e).Msg("timer callback failed")
		}

		select {
		case d.errCh <- e:
		default:
			atomic.AddInt64(&d.dropped, 1)
		}

		if onError != nil {
			robin.RightNow().Do(onError, e)
		}
	}
}

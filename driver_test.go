package tickwheel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DriverTestSuite struct {
	suite.Suite
	driver *Driver
}

// TestDriverTestSuite runs the driver test suite
func TestDriverTestSuite(t *testing.T) {
	suite.Run(t, new(DriverTestSuite))
}

// SetupTest runs before each test with a fresh, started driver.
func (ts *DriverTestSuite) SetupTest() {
	ts.driver = NewDriver(
		WithResolution(time.Millisecond),
		WithErrorBuffer(16),
	)
	ts.driver.Start()
}

// TearDownTest runs after each test.
func (ts *DriverTestSuite) TearDownTest() {
	ts.driver.Stop()
}

func (ts *DriverTestSuite) TestFiresScheduled() {
	should := require.New(ts.T())

	var fired int32
	tm, err := ts.driver.Schedule(5*time.Millisecond, func() error {
		atomic.StoreInt32(&fired, 1)
		return nil
	})
	should.NoError(err)
	should.Equal(uint64(5), tm.Delay())

	should.Eventually(func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, time.Millisecond)
	should.False(tm.Active())
}

func (ts *DriverTestSuite) TestNeverFiresEarly() {
	should := require.New(ts.T())

	start := time.Now()
	done := make(chan time.Duration, 1)
	_, err := ts.driver.Schedule(30*time.Millisecond, func() error {
		done <- time.Since(start)
		return nil
	})
	should.NoError(err)

	select {
	case elapsed := <-done:
		should.GreaterOrEqual(elapsed, 30*time.Millisecond)
	case <-time.After(time.Second):
		should.Fail("timer did not fire")
	}
}

func (ts *DriverTestSuite) TestCancel() {
	should := require.New(ts.T())

	var fired int32
	tm, err := ts.driver.Schedule(20*time.Millisecond, func() error {
		atomic.StoreInt32(&fired, 1)
		return nil
	})
	should.NoError(err)

	should.True(ts.driver.Cancel(tm))
	should.False(ts.driver.Cancel(tm))

	time.Sleep(60 * time.Millisecond)
	should.Zero(atomic.LoadInt32(&fired))
	should.Equal(int64(1), ts.driver.Statistics().Cancelled())
}

func (ts *DriverTestSuite) TestErrorsPublished() {
	should := require.New(ts.T())

	boom := errors.New("boom")
	tm, err := ts.driver.Schedule(time.Millisecond, func() error { return boom })
	should.NoError(err)

	select {
	case err := <-ts.driver.Errors():
		should.ErrorIs(err, boom)

		var ce *CallbackError
		should.ErrorAs(err, &ce)
		should.Equal(tm.ID(), ce.TimerID)
	case <-time.After(time.Second):
		should.Fail("no error published")
	}

	should.Eventually(func() bool {
		return ts.driver.Statistics().Failed() == 1
	}, time.Second, time.Millisecond)
}

func (ts *DriverTestSuite) TestScheduleFromCallback() {
	should := require.New(ts.T())

	var count int32
	var rearm Callback
	rearm = func() error {
		if atomic.AddInt32(&count, 1) < 3 {
			_, err := ts.driver.Schedule(2*time.Millisecond, rearm)
			return err
		}
		return nil
	}
	_, err := ts.driver.Schedule(2*time.Millisecond, rearm)
	should.NoError(err)

	should.Eventually(func() bool {
		return atomic.LoadInt32(&count) == 3
	}, time.Second, time.Millisecond)
}

func (ts *DriverTestSuite) TestConcurrentSchedule() {
	should := require.New(ts.T())

	const workers = 10
	const perWorker = 50

	var fired int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				cancel := i == 0 && j%2 == 0
				delay := time.Duration(j%10) * time.Millisecond
				if cancel {
					delay = time.Second
				}

				tm, err := ts.driver.Schedule(delay, func() error {
					atomic.AddInt64(&fired, 1)
					return nil
				})
				if err != nil {
					return
				}
				if cancel {
					ts.driver.Cancel(tm)
				}
			}
		}(i)
	}
	wg.Wait()

	const want = workers*perWorker - perWorker/2
	should.Eventually(func() bool {
		return atomic.LoadInt64(&fired) == want
	}, 2*time.Second, 5*time.Millisecond)

	s := ts.driver.Statistics()
	should.Equal(int64(want), s.Fired())
	should.Equal(int64(perWorker/2), s.Cancelled())
	should.Zero(s.Queued())
}

func (ts *DriverTestSuite) TestScheduleValidation() {
	should := require.New(ts.T())

	_, err := ts.driver.Schedule(time.Millisecond, nil)
	should.ErrorIs(err, ErrNilCallback)

	_, err = ts.driver.Schedule(time.Duration(MaxDuration)*time.Millisecond, func() error { return nil })
	should.ErrorIs(err, ErrOutOfRange)

	tm, err := ts.driver.Schedule(time.Duration(MaxDuration-1)*time.Millisecond, func() error { return nil })
	should.NoError(err)
	should.Equal(MaxDuration-1, tm.Delay())
}

func (ts *DriverTestSuite) TestStopFromCallback() {
	should := require.New(ts.T())

	done := make(chan struct{})
	_, err := ts.driver.Schedule(time.Millisecond, func() error {
		ts.driver.Stop()
		close(done)
		return nil
	})
	should.NoError(err)

	select {
	case <-done:
	case <-time.After(time.Second):
		should.Fail("Stop called from a callback did not return")
	}
	should.False(ts.driver.IsRunning())

	// the loop closes Errors() once the tick completes
	should.Eventually(func() bool {
		select {
		case _, open := <-ts.driver.Errors():
			return !open
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	_, err = ts.driver.Schedule(time.Millisecond, func() error { return nil })
	should.ErrorIs(err, ErrStopped)
}

func TestDriverStopIsIdempotent(t *testing.T) {
	should := require.New(t)

	d := NewDriver(WithResolution(time.Millisecond))
	should.False(d.IsRunning())

	d.Start()
	should.True(d.IsRunning())
	d.Start()
	should.True(d.IsRunning())

	d.Stop()
	should.False(d.IsRunning())
	d.Start() // return directly
	should.False(d.IsRunning())
	d.Stop() // return directly

	tm, err := d.Schedule(time.Millisecond, func() error { return nil })
	should.ErrorIs(err, ErrStopped)
	should.Nil(tm)

	_, open := <-d.Errors()
	should.False(open)
}

func TestDriverErrorHandler(t *testing.T) {
	should := require.New(t)

	got := make(chan error, 1)
	d := NewDriver(
		WithResolution(time.Millisecond),
		WithErrorHandler(func(err error) { got <- err }),
		WithErrorBuffer(0),
	)
	d.Start()
	defer d.Stop()

	boom := errors.New("boom")
	_, err := d.Schedule(time.Millisecond, func() error { return boom })
	should.NoError(err)

	select {
	case err := <-got:
		should.ErrorIs(err, boom)
	case <-time.After(time.Second):
		should.Fail("error handler not called")
	}

	// nobody reads Errors() on an unbuffered channel
	should.Eventually(func() bool {
		return d.Statistics().Dropped() == 1
	}, time.Second, time.Millisecond)
}

func TestDriverQueuesBeforeStart(t *testing.T) {
	should := require.New(t)

	d := NewDriver(WithResolution(time.Millisecond))
	defer d.Stop()

	var fired int32
	_, err := d.Schedule(time.Millisecond, func() error {
		atomic.StoreInt32(&fired, 1)
		return nil
	})
	should.NoError(err)
	should.Equal(1, d.Statistics().Queued())

	d.Start()
	should.Eventually(func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, time.Millisecond)
}

func TestDriverRejectsDeadlineBeyondRange(t *testing.T) {
	should := require.New(t)

	clock := newManualClock()
	d := NewDriver(WithResolution(time.Millisecond), WithClock(clock.Now))
	defer d.Stop()

	// the wheel reference lags the clock, so the deadline converts to more
	// ticks than it did when scheduled
	d.wheel.ref = clock.Now()
	clock.Add(5 * time.Millisecond)

	far, err := d.Schedule(time.Duration(MaxDuration-1)*time.Millisecond, func() error { return nil })
	should.NoError(err)
	near, err := d.Schedule(10*time.Millisecond, func() error { return nil })
	should.NoError(err)

	d.drain()

	should.False(far.Active())
	should.True(near.Active())
	should.Equal(1, d.wheel.Len())
	should.Zero(d.Statistics().Queued())

	select {
	case err := <-d.Errors():
		should.ErrorIs(err, ErrOutOfRange)
	default:
		should.Fail("out of range timer not reported")
	}
}

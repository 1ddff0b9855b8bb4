package tickwheel

import "sync/atomic"

// Statistics contains wheel activity counters.
type Statistics struct {
	scheduled int64
	fired     int64
	cancelled int64
	cascaded  int64
	failed    int64
	pending   int64
	queued    int
	dropped   int64
}

// Scheduled returns the number of timers accepted by Schedule.
func (s Statistics) Scheduled() int64 {
	return s.scheduled
}

// Fired returns the number of callbacks invoked.
func (s Statistics) Fired() int64 {
	return s.fired
}

// Cancelled returns the number of timers deactivated by Cancel.
func (s Statistics) Cancelled() int64 {
	return s.cancelled
}

// Cascaded returns the number of times a timer moved down a level.
func (s Statistics) Cascaded() int64 {
	return s.cascaded
}

// Failed returns the number of callbacks that returned an error or panicked.
func (s Statistics) Failed() int64 {
	return s.failed
}

// Pending returns the number of timers held in buckets, tombstones included.
func (s Statistics) Pending() int64 {
	return s.pending
}

// Queued returns the number of timers waiting in a Driver hand-off queue.
func (s Statistics) Queued() int {
	return s.queued
}

// Dropped returns the number of callback errors a Driver could not deliver
// to its error channel because it was full.
func (s Statistics) Dropped() int64 {
	return s.dropped
}

// counters are updated by the owning goroutine but may be read from any
// goroutine (use atomic operations).
type counters struct {
	scheduled int64
	fired     int64
	cancelled int64
	cascaded  int64
	failed    int64
	pending   int64
}

func (c *counters) snapshot() Statistics {
	return Statistics{
		scheduled: atomic.LoadInt64(&c.scheduled),
		fired:     atomic.LoadInt64(&c.fired),
		cancelled: atomic.LoadInt64(&c.cancelled),
		cascaded:  atomic.LoadInt64(&c.cascaded),
		failed:    atomic.LoadInt64(&c.failed),
		pending:   atomic.LoadInt64(&c.pending),
	}
}

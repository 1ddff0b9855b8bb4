package tickwheel

import (
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
)

// ============================================================================
// 層級時間輪 (Hierarchical Timing Wheel)
// ============================================================================
//
// 5 層，每層 256 槽，第 L 層每槽代表 256^L 個 tick：
//
//	level 4  [  0 |  1 | ... | 255 ]   每槽 2^32 ticks
//	level 3  [  0 |  1 | ... | 255 ]   每槽 2^24 ticks
//	level 2  [  0 |  1 | ... | 255 ]   每槽 2^16 ticks
//	level 1  [  0 |  1 | ... | 255 ]   每槽 2^8  ticks
//	level 0  [  0 |  1 | ... | 255 ]   每槽 1    tick
//	           ^ cursor[0] == elapsed & 0xFF
//
// 每個 timer 以 due（開始觸發它的那次 Advance 時 elapsed 的值）定位：
//   - 層級：剩餘 tick 數 (due - elapsed) 能被表示的最低層
//   - 槽位：due 在該層的 8 bit 切片 (due >> 8L) & 0xFF
//
// cursor[L] 永遠等於 (elapsed >> 8L) & 0xFF。第 0 層轉完一圈時第 1 層
// cursor 前進一格，並把該槽的 timer 依 due 重新放入較低層（cascade），
// 以此類推。每個 timer 在每一層最多被搬移一次。
// ============================================================================

const (
	// Step is the number of slots in each level.
	Step = 1 << stepBits

	// MaxLevel is the number of cascaded levels.
	MaxLevel = 5

	// MaxDuration is the exclusive upper bound of a delay, in ticks (Step^MaxLevel).
	MaxDuration uint64 = 1 << (stepBits * MaxLevel)

	stepBits = 8
	stepMask = Step - 1
)

// Wheel is a hierarchical timing wheel.
//
// A Wheel does no locking: Schedule, Cancel, Advance and Update must be
// called from a single goroutine or under one lock held by the caller.
// Driver provides such an owner. Callbacks run on the goroutine calling
// Advance and may schedule or cancel timers on the same wheel.
//
// The embedded Options are fixed by New and must not be changed afterwards.
type Wheel struct {
	Options

	buckets [MaxLevel][Step][]*Timer
	cursor  [MaxLevel]int

	// elapsed counts ticks advanced since creation or Reset.
	elapsed uint64

	// ref is the wall-clock instant that elapsed ticks are measured from by Update.
	ref time.Time

	// firing is true while the callbacks of the current tick run.
	firing bool

	// nextID is shared with Driver goroutines (use atomic operations).
	nextID uint64

	stats counters
}

// New creates a Wheel. Its wall-clock reference for Update is the clock's
// current time.
func New(opts ...Option) *Wheel {
	w := &Wheel{
		Options: NewOptions(opts...),
	}
	w.ref = w.Clock()

	return w
}

// Schedule registers cb to run on the Advance that brings Elapsed to
// Elapsed()+delay. A delay of 0 fires on the next Advance. Called from a
// callback, the delay counts from the end of the tick being fired.
func (w *Wheel) Schedule(delay uint64, cb Callback) (*Timer, error) {
	if delay >= MaxDuration {
		return nil, outOfRange(delay)
	}
	if cb == nil {
		return nil, ErrNilCallback
	}

	t := w.newTimer(delay, cb)
	w.insert(t, delay)

	return t, nil
}

// ScheduleAfter schedules cb after d, rounded up to whole ticks.
func (w *Wheel) ScheduleAfter(d time.Duration, cb Callback) (*Timer, error) {
	return w.Schedule(w.ticks(d), cb)
}

// ScheduleAt schedules cb at the given wall-clock deadline, converted to a
// tick count relative to the clock's current time. Deadlines in the past
// fire on the next Advance.
func (w *Wheel) ScheduleAt(deadline time.Time, cb Callback) (*Timer, error) {
	return w.Schedule(w.ticks(deadline.Sub(w.Clock())), cb)
}

// Cancel deactivates t so its callback never runs. It reports whether this
// call cancelled the timer; cancelling a nil, fired or already cancelled
// timer is a no-op that returns false. The timer stays in its bucket until
// its tick or cascade discards it.
func (w *Wheel) Cancel(t *Timer) bool {
	if t == nil || !t.deactivate() {
		return false
	}

	atomic.AddInt64(&w.stats.cancelled, 1)
	return true
}

// Advance fires every active timer due at the current tick, then moves the
// wheel forward by one tick and cascades higher levels when a lower level
// wraps. Callback failures do not stop the remaining callbacks of the tick;
// they are combined and returned once the tick completes.
func (w *Wheel) Advance() error {
	if w.firing {
		return ErrReentrantAdvance
	}

	errs := w.fire()

	w.elapsed++
	w.cursor[0] = (w.cursor[0] + 1) & stepMask
	if w.cursor[0] == 0 {
		w.cascade(1)
	}

	return errs
}

// Update advances the wheel once for every whole tick of wall-clock time
// elapsed since the previous Update (or New/Reset). The remainder is kept for
// the next call. The returned error combines the failures of all ticks.
func (w *Wheel) Update() error {
	if w.firing {
		return ErrReentrantAdvance
	}

	now := w.Clock()
	if now.Before(w.ref) {
		// clock went backwards, re-anchor without firing
		w.ref = now
		return nil
	}

	n := uint64(now.Sub(w.ref) / w.Resolution)
	if n == 0 {
		return nil
	}
	w.ref = w.ref.Add(time.Duration(n) * w.Resolution)

	var errs error
	for i := uint64(0); i < n; i++ {
		errs = multierr.Append(errs, w.Advance())
	}

	return errs
}

// Elapsed returns the number of ticks advanced since creation or Reset.
func (w *Wheel) Elapsed() uint64 {
	return w.elapsed
}

// Cursor returns the current slot index of a level, or -1 for an invalid level.
func (w *Wheel) Cursor(level int) int {
	if level < 0 || level >= MaxLevel {
		return -1
	}

	return w.cursor[level]
}

// Len returns the number of timers held in buckets, including cancelled
// timers that have not been discarded yet.
func (w *Wheel) Len() int {
	return int(atomic.LoadInt64(&w.stats.pending))
}

// Statistics returns a snapshot of the wheel counters. It is safe to call
// from any goroutine.
func (w *Wheel) Statistics() Statistics {
	return w.stats.snapshot()
}

// Reset drops every timer, deactivating them, and rewinds the wheel to
// tick 0 with a fresh wall-clock reference. It is a no-op inside a callback.
func (w *Wheel) Reset() {
	if w.firing {
		return
	}

	for l := range w.buckets {
		for s := range w.buckets[l] {
			for _, t := range w.buckets[l][s] {
				t.deactivate()
			}
			w.buckets[l][s] = nil
		}
		w.cursor[l] = 0
	}

	w.elapsed = 0
	w.ref = w.Clock()
	atomic.StoreInt64(&w.stats.pending, 0)
	w.Logger.Debug().Msg("wheel reset")
}

func (w *Wheel) newTimer(delay uint64, cb Callback) *Timer {
	return newTimer(atomic.AddUint64(&w.nextID, 1), delay, cb)
}

// ticks converts a duration to a tick count, rounding up.
func (w *Wheel) ticks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}

	n := d / w.Resolution
	if d%w.Resolution != 0 {
		n++
	}

	return uint64(n)
}

// base is the elapsed value new timers are placed relative to. While a tick
// is firing, that tick is treated as already done.
func (w *Wheel) base() uint64 {
	if w.firing {
		return w.elapsed + 1
	}

	return w.elapsed
}

func (w *Wheel) insert(t *Timer, delay uint64) {
	// delay 0 與 delay 1 都落在下一次 Advance
	if delay == 0 {
		delay = 1
	}
	t.due = w.base() + delay - 1

	w.place(t)
	atomic.AddInt64(&w.stats.scheduled, 1)

	w.Logger.Trace().
		Uint64("timer", t.id).
		Uint64("delay", t.delay).
		Uint64("due", t.due).
		Msg("timer scheduled")
}

// place puts t into the lowest level able to address its remaining ticks.
func (w *Wheel) place(t *Timer) {
	base := w.base()
	if t.due < base {
		t.due = base
	}

	delta := t.due - base
	level := 0
	for level < MaxLevel-1 && delta >= 1<<(stepBits*(level+1)) {
		level++
	}

	slot := int(t.due>>(stepBits*level)) & stepMask
	w.buckets[level][slot] = append(w.buckets[level][slot], t)
	atomic.AddInt64(&w.stats.pending, 1)
}

// fire runs the level-0 bucket under cursor[0].
func (w *Wheel) fire() error {
	idx := w.cursor[0]
	bucket := w.buckets[0][idx]
	if len(bucket) == 0 {
		return nil
	}

	// 先把槽取出，callback 期間新排入的 timer 不會混進這一輪
	w.buckets[0][idx] = nil
	atomic.AddInt64(&w.stats.pending, -int64(len(bucket)))

	tick := w.elapsed + 1
	var errs error

	w.firing = true
	for i, t := range bucket {
		bucket[i] = nil

		// cancelled 的 timer 在這裡被丟棄
		if !t.deactivate() {
			continue
		}

		atomic.AddInt64(&w.stats.fired, 1)
		if err := t.invoke(); err != nil {
			atomic.AddInt64(&w.stats.failed, 1)
			w.Logger.Debug().Err(err).Uint64("timer", t.id).Uint64("tick", tick).Msg("timer callback failed")
			errs = multierr.Append(errs, &CallbackError{TimerID: t.id, Tick: tick, Err: err})
		}
	}
	w.firing = false

	// 槽若仍為空則重用原本的容量
	if w.buckets[0][idx] == nil {
		w.buckets[0][idx] = bucket[:0]
	}

	return errs
}

// cascade moves the cursor of level forward and re-places the timers of the
// bucket it lands on into lower levels. When that level wraps as well the
// next level cascades too.
func (w *Wheel) cascade(level int) {
	if level >= MaxLevel {
		return
	}

	w.cursor[level] = (w.cursor[level] + 1) & stepMask
	idx := w.cursor[level]

	bucket := w.buckets[level][idx]
	if len(bucket) > 0 {
		// 重新放置只會進入較低層，不會寫回同一個槽
		w.buckets[level][idx] = bucket[:0]
		atomic.AddInt64(&w.stats.pending, -int64(len(bucket)))

		moved := 0
		for i, t := range bucket {
			bucket[i] = nil
			if !t.Active() {
				continue
			}

			w.place(t)
			moved++
		}
		atomic.AddInt64(&w.stats.cascaded, int64(moved))

		w.Logger.Trace().
			Int("level", level).
			Int("slot", idx).
			Int("moved", moved).
			Uint64("elapsed", w.elapsed).
			Msg("cascade")
	}

	if idx == 0 {
		w.cascade(level + 1)
	}
}

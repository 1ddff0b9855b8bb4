package tickwheel

import (
	"testing"
)

func nopCallback() error { return nil }

// BenchmarkSchedule benchmarks Schedule across all levels.
func BenchmarkSchedule(b *testing.B) {
	w := New()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = w.Schedule(uint64(i)%(Step*Step*Step)+1, nopCallback)
	}
}

// BenchmarkScheduleCancel benchmarks a schedule immediately followed by a cancel,
// the common pattern for idle timeouts that get refreshed.
func BenchmarkScheduleCancel(b *testing.B) {
	w := New()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		t, _ := w.Schedule(uint64(i%1000)+1, nopCallback)
		w.Cancel(t)
		if i%1000 == 999 {
			// keep tombstones from piling up
			_ = w.Advance()
		}
	}
}

// BenchmarkAdvanceEmpty benchmarks Advance on an empty wheel, including cascades.
func BenchmarkAdvanceEmpty(b *testing.B) {
	w := New()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = w.Advance()
	}
}

// BenchmarkAdvanceLoaded benchmarks Advance with a steady population of
// timers spread over the first two levels.
func BenchmarkAdvanceLoaded(b *testing.B) {
	w := New()
	var rearm Callback
	rearm = func() error {
		_, err := w.Schedule(Step*4, rearm)
		return err
	}
	for i := 0; i < 100_000; i++ {
		_, _ = w.Schedule(uint64(i%(Step*4))+1, rearm)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = w.Advance()
	}
}

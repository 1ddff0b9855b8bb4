package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jiansoft/robin"
	"github.com/jiansoft/tickwheel"
	"github.com/jiansoft/tickwheel/lru"
)

const exampleConfig = `
resolution: 10ms
error_buffer: 16
log:
  level: info
  console: true
`

func main() {
	cfg, err := tickwheel.ParseConfig([]byte(exampleConfig))
	if err != nil {
		panic(err)
	}
	logger := tickwheel.NewLogger(cfg.Log)

	logger.Info().Msg("=== tickwheel example ===")

	// 1. Manual ticking
	demonstrateManualTicks()

	// 2. Driver with idle timeouts
	demonstrateIdleTimeouts(cfg)
}

// demonstrateManualTicks drives a wheel by hand.
func demonstrateManualTicks() {
	logger := tickwheel.NewLogger(tickwheel.LogConfig{Level: "info", Console: true})
	logger.Info().Msg("--- 1. Manual ticks ---")

	w := tickwheel.New()
	for _, d := range []uint64{3, 1, 300, 2} {
		d := d // per-iteration copy; go directive is 1.21 (pre-1.22 loop semantics)
		_, _ = w.Schedule(d, func() error {
			logger.Info().Uint64("delay", d).Uint64("tick", w.Elapsed()+1).Msg("fired")
			return nil
		})
	}

	cancelled, _ := w.Schedule(5, func() error { return nil })
	w.Cancel(cancelled)

	_, _ = w.Schedule(4, func() error { return errors.New("handler failed") })

	for i := 0; i < 300; i++ {
		if err := w.Advance(); err != nil {
			logger.Warn().Err(err).Uint64("tick", w.Elapsed()).Msg("callback error")
		}
	}

	s := w.Statistics()
	logger.Info().
		Int64("fired", s.Fired()).
		Int64("cancelled", s.Cancelled()).
		Int64("cascaded", s.Cascaded()).
		Int64("failed", s.Failed()).
		Msg("manual wheel done")
}

// session is a fake connection tracked by the idle-timeout demo.
type session struct {
	id    string
	timer *tickwheel.Timer
}

// demonstrateIdleTimeouts keeps recent sessions in an LRU and closes the
// ones that stay idle past their timeout.
func demonstrateIdleTimeouts(cfg tickwheel.Config) {
	opts, err := cfg.Options()
	if err != nil {
		panic(err)
	}
	logger := tickwheel.NewLogger(cfg.Log)
	logger.Info().Msg("--- 2. Idle timeouts ---")

	driver := tickwheel.NewDriver(opts...)
	driver.Start()
	defer driver.Stop()

	sessions, err := lru.New[string, *session](3)
	if err != nil {
		panic(err)
	}

	touch := func(id string, idle time.Duration) {
		if s, ok := sessions.Get(id); ok {
			driver.Cancel(s.timer)
		}

		t, err := driver.Schedule(idle, func() error {
			sessions.Delete(id)
			logger.Info().Str("session", id).Msg("idle timeout, session closed")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Str("session", id).Msg("schedule failed")
			return
		}
		sessions.Set(id, &session{id: id, timer: t})
	}

	for i := 0; i < 4; i++ {
		touch(fmt.Sprintf("conn-%d", i), time.Duration(100*(i+1))*time.Millisecond)
	}
	// conn-0 was evicted from the LRU but its timer still runs
	logger.Info().Strs("sessions", sessions.Keys()).Msg("tracked sessions")

	// keep conn-3 alive
	touch("conn-3", 500*time.Millisecond)

	done := make(chan struct{})
	robin.Delay(1).Seconds().Do(func() {
		s := driver.Statistics()
		logger.Info().
			Strs("sessions", sessions.Keys()).
			Int64("fired", s.Fired()).
			Int64("cancelled", s.Cancelled()).
			Msg("after one second")
		close(done)
	})
	<-done
}

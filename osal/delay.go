package osal

import (
	"sync/atomic"
	"time"
)

// tickNanos is the system-clock tick period, in nanoseconds, that Delay
// sleeps against. Defaults to 1ms (1000 ticks/second), matching
// config.Default's TicksPerSecond; SetTickDuration lets bootstrap align it
// to the configured rate before any task calls Delay.
var tickNanos atomic.Int64

func init() {
	tickNanos.Store(int64(time.Millisecond))
}

// SetTickDuration configures the system-clock tick period Delay sleeps
// against, from a ticks-per-second rate. Call once during bootstrap, before
// any task calls Delay; a non-positive rate is ignored.
func SetTickDuration(ticksPerSecond int) {
	if ticksPerSecond <= 0 {
		return
	}
	tickNanos.Store(int64(time.Second) / int64(ticksPerSecond))
}

// Delay sleeps for the given number of system-clock ticks, per spec §4.1.
// Go's runtime has no signal-delivery concept that can interrupt
// time.Sleep partway through, so the "resumes cleanly across signal
// interruptions" contract holds with nothing further to implement: there
// is no early wakeup here that would need resuming.
func Delay(ticks int) Result {
	if ticks < 0 {
		return InvalidArguments
	}
	time.Sleep(time.Duration(ticks) * time.Duration(tickNanos.Load()))
	return Okay
}

package osal

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxTimers matches config.Default's MaxTimers; SetMaxTimers aligns
// the bound to the configured value during bootstrap.
const DefaultMaxTimers = 8

var (
	timersRunning atomic.Int32
	maxTimers     atomic.Int32
)

func init() {
	maxTimers.Store(DefaultMaxTimers)
}

// SetMaxTimers bounds how many timers may be armed at once. Call once
// during bootstrap, before any timer starts; a non-positive bound is
// ignored.
func SetMaxTimers(n int) {
	if n > 0 {
		maxTimers.Store(int32(n))
	}
}

// TimerCallback runs on every tick. It returns true to keep the timer
// armed, false to stop it after this invocation — mirroring the periodic
// hardware timer the spec models, where rearming is the default and only a
// deliberate false tears it down (§4.1).
type TimerCallback func() bool

// Timer drives a TimerCallback at a fixed period. The callback runs on its
// own goroutine standing in for the asynchronous-signal context the spec
// describes; callers must keep it to the minimum work possible (§9) — in
// protoflight that's a single Semaphore.Give.
type Timer struct {
	mu      sync.Mutex
	ticker  *time.Ticker
	stop    chan struct{}
	stopped bool
}

// NewTimer allocates a stopped timer.
func NewTimer() *Timer {
	return &Timer{}
}

// Start arms the timer with the given callback and period. Calling Start on
// an already-started timer is a no-op returning InvalidArguments.
func (t *Timer) Start(cb TimerCallback, period time.Duration) Result {
	if cb == nil || period <= 0 {
		return InvalidArguments
	}
	t.mu.Lock()
	if t.ticker != nil {
		t.mu.Unlock()
		return InvalidArguments
	}
	if timersRunning.Add(1) > maxTimers.Load() {
		timersRunning.Add(-1)
		t.mu.Unlock()
		return MaxTimersReached
	}
	t.ticker = time.NewTicker(period)
	t.stop = make(chan struct{})
	ticker, stop := t.ticker, t.stop
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				if !cb() {
					t.Stop()
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return Okay
}

// Stop disarms the timer. Safe to call more than once.
func (t *Timer) Stop() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return Okay
	}
	t.stopped = true
	if t.ticker != nil {
		t.ticker.Stop()
		timersRunning.Add(-1)
	}
	if t.stop != nil {
		close(t.stop)
	}
	return Okay
}

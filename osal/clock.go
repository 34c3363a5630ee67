package osal

import "time"

// Timestamp is a {seconds, nanoseconds} pair, the fixed-point wire shape the
// original OS layer uses for monotonic time.
type Timestamp struct {
	Seconds     int64
	Nanoseconds int64
}

var bootTime = time.Now()

// Now returns the monotonic time since process start. It never regresses:
// time.Since always reads the runtime's monotonic clock reading embedded in
// bootTime, so wall-clock adjustments (NTP slew, timezone changes) can't
// move it backwards.
func Now() Timestamp {
	d := time.Since(bootTime)
	return Timestamp{
		Seconds:     int64(d / time.Second),
		Nanoseconds: int64(d % time.Second),
	}
}

// NowDouble is Now expressed as seconds with fractional nanoseconds, for
// callers that want a single float rather than the two-field struct.
func NowDouble() float64 {
	return time.Since(bootTime).Seconds()
}

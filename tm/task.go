package tm

import "protoflight/osal"

// DefaultMaxTaskNameLength is the fallback task-name bound (spec §6) used
// when NewTM is given a non-positive maxTaskNameLength.
const DefaultMaxTaskNameLength = 32

// Kind is a task's scheduling discipline (spec §4.5).
type Kind int

const (
	Periodic Kind = iota
	Event
	Callback
	Monitor
)

func (k Kind) String() string {
	switch k {
	case Periodic:
		return "PERIODIC"
	case Event:
		return "EVENT"
	case Callback:
		return "CALLBACK"
	case Monitor:
		return "MONITOR"
	default:
		return "INVALID"
	}
}

// TaskFunc is a task body. arg is whatever was passed at registration time,
// standing in for the void* argument of the original OS task contract.
type TaskFunc func(arg any)

// taskRecord is the scheduler's private bookkeeping for one registered
// task (spec §3's Task Record). Only the scheduler goroutine mutates
// ticks; workers only ever read their own gate through Running.
type taskRecord struct {
	kind            Kind
	name            string
	fn              TaskFunc
	arg             any
	schedulePeriod  int
	heartbeatPeriod int
	ticks           int
	priority        int
	stackSize       int
	gate            *osal.Semaphore
	handle          *osal.TaskHandle
}

// truncateName copies name up to tm's configured max task-name length
// (spec §6), standing in for the C source's bounded, null-terminated copy.
func (tm *TM) truncateName(name string) string {
	if len(name) > tm.maxTaskNameLength {
		return name[:tm.maxTaskNameLength]
	}
	return name
}

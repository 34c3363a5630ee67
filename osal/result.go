// Package osal is the thin operating-system abstraction layer the rest of
// protoflight is built on: monotonic clock, bounded queues, counting
// semaphores, a recursive mutex, periodic timers, and task spawn/status.
// Every operation here reports one of the Result values below rather than
// panicking, so the modules built on top of it never need to distinguish
// Go-specific failure modes from the ones the original OS contract defines.
package osal

// Result is the typed outcome every osal operation returns. Callers above
// this layer only ever branch on Okay, Timeout, and "anything else" per
// spec §4.1's error policy.
type Result int

const (
	Okay Result = iota
	NullPointer
	Timeout
	MsgSizeError
	MaxTimersReached
	InvalidArguments
	QueueCreateError
	Error
)

func (r Result) String() string {
	switch r {
	case Okay:
		return "OKAY"
	case NullPointer:
		return "NULL_POINTER"
	case Timeout:
		return "TIMEOUT"
	case MsgSizeError:
		return "MSG_SIZE_ERROR"
	case MaxTimersReached:
		return "MAX_TIMERS_REACHED"
	case InvalidArguments:
		return "INVALID_ARGUMENTS"
	case QueueCreateError:
		return "QUEUE_CREATE_ERROR"
	default:
		return "ERROR"
	}
}

// IsOS reports whether r is a non-timeout OS-layer failure, the "collapse
// everything else into one counter" bucket from spec §4.1's error policy.
func (r Result) IsOS() bool {
	return r != Okay && r != Timeout
}

package tm

// Result is TM's typed outcome enum (spec §7's per-module *_RESULT sum).
type Result int

const (
	Okay Result = iota
	NullPointer
	InvalidArgument
	SemCreateError
	MaxTasksReached
	AlreadyStarted
	TimerStartFailed
)

func (r Result) String() string {
	switch r {
	case Okay:
		return "OKAY"
	case NullPointer:
		return "NULL_POINTER"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case SemCreateError:
		return "SEM_CREATE_ERROR"
	case MaxTasksReached:
		return "MAX_TASKS_REACHED"
	case AlreadyStarted:
		return "ALREADY_STARTED"
	case TimerStartFailed:
		return "TIMER_START_FAILED"
	default:
		return "ERROR"
	}
}

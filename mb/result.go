package mb

// Result is MB's typed outcome enum (spec §7: "errors ... lifted into a
// per-module *_RESULT sum at each boundary"), built from the underlying
// osal.Result plus the resource-exhaustion and validation failures that are
// specific to pipes and subscriptions.
type Result int

const (
	Okay Result = iota
	NullPointer
	InvalidArguments
	InvalidPipe
	InvalidPacketID
	MaxPipesReached
	PipeCreateFailed
	SendError
	Timeout
	PipeReadError
)

func (r Result) String() string {
	switch r {
	case Okay:
		return "OKAY"
	case NullPointer:
		return "NULL_POINTER"
	case InvalidArguments:
		return "INVALID_ARGUMENTS"
	case InvalidPipe:
		return "INVALID_PIPE"
	case InvalidPacketID:
		return "INVALID_PACKET_ID"
	case MaxPipesReached:
		return "MAX_PIPES_REACHED"
	case PipeCreateFailed:
		return "PIPE_CREATE_FAILED"
	case SendError:
		return "SEND_ERROR"
	case Timeout:
		return "TIMEOUT"
	case PipeReadError:
		return "PIPE_READ_ERROR"
	default:
		return "ERROR"
	}
}

package controller

// State of the controller.
//
//	Uninitialized -> Idle (root)
//	Uninitialized -> WaitingForCommand (worker) -> Executing -> WaitingForCommand | Terminated
//
// The root stays Idle until it is closed, a worker is Terminated only by the StopWorker command or by a failure.
type State int32

const (
	StateUninitialized State = iota
	StateIdle
	StateWaitingForCommand
	StateExecuting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateWaitingForCommand:
		return "waitingForCommand"
	case StateExecuting:
		return "executing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

package supervisor

// State is the supervisor's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateAwaitingReadiness
	StateReady
	StateFailed
	StateStopped
)

// AllStates lists every state in declaration order.
var AllStates = []State{StateIdle, StateStarting, StateAwaitingReadiness, StateReady, StateFailed, StateStopped}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateAwaitingReadiness:
		return "awaiting_readiness"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// active reports whether a start is under way or has succeeded.
func (s State) active() bool {
	return s == StateStarting || s == StateAwaitingReadiness || s == StateReady
}

package node

// State is the lifecycle state of a node runtime.
//
// Transitions: Created → Initializing → Running → Draining → Terminated,
// with the error path Running → Faulted → Terminated (and
// Initializing → Faulted when setup fails).
type State int32

const (
	StateCreated State = iota
	StateInitializing
	StateRunning
	StateDraining
	StateFaulted
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFaulted:
		return "faulted"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

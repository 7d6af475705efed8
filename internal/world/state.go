package world

// State is the lifecycle position of a chunk in the store.
//
//	Unloaded -> Generating -> Ready -> Unloading -> (removed)
//	                       -> Failed -> Unloaded (retry)
//	                                 -> Unloading -> (removed)
type State uint8

const (
	StateUnloaded State = iota
	StateGenerating
	StateReady
	StateFailed
	StateUnloading
	stateCount
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateUnloading:
		return "unloading"
	default:
		return "invalid"
	}
}

var transitions = [stateCount][stateCount]bool{
	StateUnloaded:   {StateGenerating: true},
	StateGenerating: {StateReady: true, StateFailed: true},
	StateReady:      {StateUnloading: true},
	StateFailed:     {StateUnloaded: true, StateUnloading: true},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	if from >= stateCount || to >= stateCount {
		return false
	}
	return transitions[from][to]
}

package world

type EventKind uint8

const (
	EventReady EventKind = iota + 1
	EventFailed
	EventUnloading
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventFailed:
		return "failed"
	case EventUnloading:
		return "unloading"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event reports a lifecycle transition. Listeners run on the owner goroutine
// and must not call back into owner-only store methods.
type Event struct {
	Kind      EventKind
	Coord     ChunkCoord
	Attempt   int
	Permanent bool
	Err       error
}

// Listener receives store events.
type Listener func(Event)

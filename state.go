package mts

// Phase represents a lifecycle state of a train
type Phase int32

const (
	// Loading is the initial phase; the train is preparing and not yet queued
	Loading Phase = iota
	// Queued trains wait in their direction queue for a crossing grant
	Queued
	// Crossing trains hold exclusive access to the main track
	Crossing
	// Crossed is the final phase
	Crossed
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Queued:
		return "queued"
	case Crossing:
		return "crossing"
	case Crossed:
		return "crossed"
	default:
		return "unknown"
	}
}

// IsFinal reports whether no further transition leaves p
func (p Phase) IsFinal() bool {
	return p == Crossed
}

// Transition is one legal lifecycle step and the trigger that causes it
type Transition struct {
	From  Phase
	To    Phase
	Event string
}

// Lifecycle triggers
const (
	EventLoaded  = "loaded"
	EventGranted = "granted"
	EventCleared = "cleared"
)

// lifecycle lists every legal step. Phases only ever advance.
var lifecycle = []Transition{
	{From: Loading, To: Queued, Event: EventLoaded},
	{From: Queued, To: Crossing, Event: EventGranted},
	{From: Crossing, To: Crossed, Event: EventCleared},
}

// Transitions returns a copy of the lifecycle table
func Transitions() []Transition {
	out := make([]Transition, len(lifecycle))
	copy(out, lifecycle)
	return out
}

// findTransition returns the transition leaving from on event, if any
func findTransition(from Phase, event string) (Transition, bool) {
	for _, tr := range lifecycle {
		if tr.From == from && tr.Event == event {
			return tr, true
		}
	}
	return Transition{}, false
}

// advance moves t along the lifecycle on event. Callers hold the arbiter
// monitor; the atomic store only makes Phase() safe for outside readers.
func (t *Train) advance(event string) (Transition, error) {
	from := t.Phase()
	tr, ok := findTransition(from, event)
	if !ok {
		return Transition{}, NewPhaseError(t.ID, from, event)
	}
	t.phase.Store(int32(tr.To))
	return tr, nil
}

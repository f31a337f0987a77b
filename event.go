package mts

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names the externally visible train events
type EventKind string

const (
	// EventReady is emitted when a train enters its queue
	EventReady EventKind = "ready"
	// EventOnTrack is emitted when a train is admitted onto the main track
	EventOnTrack EventKind = "on_track"
	// EventOffTrack is emitted when a train finishes crossing
	EventOffTrack EventKind = "off_track"
)

// KindOf maps a lifecycle step to the event it produces
func KindOf(tr Transition) (EventKind, bool) {
	switch tr.To {
	case Queued:
		return EventReady, true
	case Crossing:
		return EventOnTrack, true
	case Crossed:
		return EventOffTrack, true
	default:
		return "", false
	}
}

// Event is one timestamped train event of a run
type Event struct {
	ID        uuid.UUID     `json:"id"`
	RunID     uuid.UUID     `json:"run_id"`
	Kind      EventKind     `json:"kind"`
	TrainID   int           `json:"train_id"`
	Direction string        `json:"direction"`
	Priority  string        `json:"priority"`
	At        time.Duration `json:"sim_time_ns"`
}

// NewEvent creates the event produced by tr, if the step produces one
func NewEvent(runID uuid.UUID, t *Train, tr Transition, at time.Duration) (Event, bool) {
	kind, ok := KindOf(tr)
	if !ok {
		return Event{}, false
	}
	return Event{
		ID:        uuid.New(),
		RunID:     runID,
		Kind:      kind,
		TrainID:   t.ID,
		Direction: t.Direction.String(),
		Priority:  t.Priority.String(),
		At:        at,
	}, true
}

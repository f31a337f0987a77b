package mts

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Direction is the side of the track a train is travelling toward
type Direction int

const (
	// NoDirection is the zero value, used before any train has been granted the track
	NoDirection Direction = iota
	// East bound trains
	East
	// West bound trains
	West
)

// String returns the human readable direction name
func (d Direction) String() string {
	switch d {
	case East:
		return "East"
	case West:
		return "West"
	default:
		return "None"
	}
}

// Opposite returns the other direction. NoDirection has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case East:
		return West
	case West:
		return East
	default:
		return NoDirection
	}
}

// Valid reports whether d names one side of the track
func (d Direction) Valid() bool {
	return d == East || d == West
}

// Priority is the priority class of a train
type Priority int

const (
	// Normal priority trains
	Normal Priority = iota
	// High priority trains are preferred for admission
	High
)

// String returns the human readable priority name
func (p Priority) String() string {
	if p == High {
		return "High"
	}
	return "Normal"
}

// TrainSpec is the immutable description of one train as read from a manifest
type TrainSpec struct {
	Direction Direction
	Priority  Priority
	// LoadTime and CrossTime are simulated durations.
	LoadTime  time.Duration
	CrossTime time.Duration
}

// Train is one train taking part in a simulation.
//
// The description fields are fixed at construction. The scheduling state
// (phase, rank, grant signal) is owned by the Arbiter and only mutated
// while its monitor is held.
type Train struct {
	ID        int
	Direction Direction
	Priority  Priority
	LoadTime  time.Duration
	CrossTime time.Duration

	phase   atomic.Int32
	rank    uint64
	granted chan struct{}
}

// NewTrain creates a train in the Loading phase
func NewTrain(id int, spec TrainSpec) *Train {
	return &Train{
		ID:        id,
		Direction: spec.Direction,
		Priority:  spec.Priority,
		LoadTime:  spec.LoadTime,
		CrossTime: spec.CrossTime,
		granted:   make(chan struct{}),
	}
}

// Phase returns the current lifecycle phase. Safe for concurrent use.
func (t *Train) Phase() Phase {
	return Phase(t.phase.Load())
}

// Rank returns the queue rank assigned at insertion, or 0 if the train
// has not been queued yet. Ranks start at 1.
func (t *Train) Rank() uint64 {
	return t.rank
}

// Spec returns the immutable description of the train
func (t *Train) Spec() TrainSpec {
	return TrainSpec{
		Direction: t.Direction,
		Priority:  t.Priority,
		LoadTime:  t.LoadTime,
		CrossTime: t.CrossTime,
	}
}

// outranks reports whether t sorts ahead of other inside one direction queue
func (t *Train) outranks(other *Train) bool {
	if t.Priority != other.Priority {
		return t.Priority > other.Priority
	}
	return t.rank < other.rank
}

func (t *Train) String() string {
	return fmt.Sprintf("train %d (%s %s)", t.ID, t.Priority, t.Direction)
}

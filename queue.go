package mts

import (
	"fmt"
	"sort"
)

// DirectionQueue holds the queued trains of one direction, ordered by
// priority (High first) and then by queue rank.
//
// A DirectionQueue is not safe for concurrent use; the Arbiter serializes
// every access under its monitor.
type DirectionQueue struct {
	direction Direction
	trains    []*Train
}

// NewDirectionQueue creates an empty queue for direction d
func NewDirectionQueue(d Direction) *DirectionQueue {
	return &DirectionQueue{direction: d}
}

// Direction returns the direction this queue serves
func (q *DirectionQueue) Direction() Direction {
	return q.direction
}

// Len returns the number of waiting trains
func (q *DirectionQueue) Len() int {
	return len(q.trains)
}

// Insert places t at its ordered position. The train's rank must already
// be assigned; ties cannot occur because ranks are unique.
func (q *DirectionQueue) Insert(t *Train) {
	idx := sort.Search(len(q.trains), func(i int) bool {
		return t.outranks(q.trains[i])
	})
	q.trains = append(q.trains, nil)
	copy(q.trains[idx+1:], q.trains[idx:])
	q.trains[idx] = t
}

// PeekHead returns the highest ranked train, or nil when the queue is empty
func (q *DirectionQueue) PeekHead() *Train {
	if len(q.trains) == 0 {
		return nil
	}
	return q.trains[0]
}

// PopHead removes t, which must be the current head
func (q *DirectionQueue) PopHead(t *Train) error {
	if len(q.trains) == 0 {
		return NewInvariantError(ErrCodeEmptyQueue, t.ID,
			fmt.Sprintf("pop from empty %s queue", q.direction))
	}
	if q.trains[0] != t {
		return NewInvariantError(ErrCodeNotQueueHead, t.ID,
			fmt.Sprintf("%s queue head is train %d", q.direction, q.trains[0].ID))
	}
	q.trains[0] = nil
	q.trains = q.trains[1:]
	return nil
}

// Snapshot returns the queued train IDs in crossing order
func (q *DirectionQueue) Snapshot() []int {
	ids := make([]int, len(q.trains))
	for i, t := range q.trains {
		ids[i] = t.ID
	}
	return ids
}

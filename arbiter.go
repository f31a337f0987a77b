package mts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Arbiter owns the main track. Both direction queues and the scheduler
// state live behind a single mutex; queue insertion, removal and
// evaluation of the admission predicate never interleave.
//
// Workers talk to the arbiter in three steps: Enqueue once loaded,
// AwaitGrant until admitted, Release once across. Every state change
// re-runs the predicate, and a grant is delivered by closing the
// admitted train's grant channel, so waiting workers never evaluate the
// policy themselves.
type Arbiter struct {
	mutex     sync.Mutex
	policy    Policy
	clock     Clock
	observers *ObserverManager
	tracker   *CompletionTracker

	east     *DirectionQueue
	west     *DirectionQueue
	state    SchedulerState
	nextRank uint64
	order    []int

	arrivals    []*arrivalBatch
	batchOf     map[*Train]*arrivalBatch
	nextArrival int
}

// arrivalBatch collects the trains due to finish loading at one instant
type arrivalBatch struct {
	due      time.Duration
	expected int
	arrived  []pendingArrival
}

type pendingArrival struct {
	train      *Train
	transition Transition
}

func (b *arrivalBatch) complete() bool {
	return len(b.arrived) == b.expected
}

// NewArbiter creates an arbiter for one run
func NewArbiter(policy Policy, clock Clock, observers *ObserverManager, tracker *CompletionTracker) *Arbiter {
	if observers == nil {
		observers = NewObserverManager()
	}
	return &Arbiter{
		policy:    policy,
		clock:     clock,
		observers: observers,
		tracker:   tracker,
		east:      NewDirectionQueue(East),
		west:      NewDirectionQueue(West),
	}
}

func (a *Arbiter) queue(d Direction) *DirectionQueue {
	if d == West {
		return a.west
	}
	return a.east
}

// ExpectArrivals registers the trains whose loading the arbiter should
// batch. Trains due at the same simulated instant enter their queues
// together in ID order, and an instant is only queued once every earlier
// instant has been. Call it before any of the trains enqueue.
func (a *Arbiter) ExpectArrivals(trains []*Train) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	byDue := make(map[time.Duration]*arrivalBatch)
	a.batchOf = make(map[*Train]*arrivalBatch, len(trains))
	a.arrivals = a.arrivals[:0]
	a.nextArrival = 0
	for _, t := range trains {
		b, ok := byDue[t.LoadTime]
		if !ok {
			b = &arrivalBatch{due: t.LoadTime}
			byDue[t.LoadTime] = b
			a.arrivals = append(a.arrivals, b)
		}
		b.expected++
		a.batchOf[t] = b
	}
	sort.Slice(a.arrivals, func(i, j int) bool {
		return a.arrivals[i].due < a.arrivals[j].due
	})
}

// Enqueue moves a loaded train into its direction queue. The rank is
// assigned inside the monitor, so ranks follow insertion order exactly.
// A train registered through ExpectArrivals is held until its whole
// batch has loaded; AwaitGrant then blocks as usual.
func (a *Arbiter) Enqueue(t *Train) error {
	if !t.Direction.Valid() {
		return NewInvariantError(ErrCodeInvalidTrain, t.ID, fmt.Sprintf("invalid direction %d", t.Direction))
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	tr, err := t.advance(EventLoaded)
	if err != nil {
		return err
	}

	b, ok := a.batchOf[t]
	if !ok {
		a.admit(t, tr, a.clock.Elapsed())
		return a.dispatch()
	}
	b.arrived = append(b.arrived, pendingArrival{train: t, transition: tr})

	// each instant is admitted before the next one is queued
	for a.nextArrival < len(a.arrivals) && a.arrivals[a.nextArrival].complete() {
		a.flush(a.arrivals[a.nextArrival])
		a.nextArrival++
		if err := a.dispatch(); err != nil {
			return err
		}
	}
	return nil
}

// flush queues a complete batch in ID order. The caller holds the mutex.
func (a *Arbiter) flush(b *arrivalBatch) {
	sort.Slice(b.arrived, func(i, j int) bool {
		return b.arrived[i].train.ID < b.arrived[j].train.ID
	})
	at := a.clock.Elapsed()
	for _, p := range b.arrived {
		a.admit(p.train, p.transition, at)
	}
}

// admit ranks t and inserts it into its queue. The caller holds the mutex.
func (a *Arbiter) admit(t *Train, tr Transition, at time.Duration) {
	a.nextRank++
	t.rank = a.nextRank
	a.queue(t.Direction).Insert(t)
	a.observers.NotifyPhaseChange(t, tr, at)
}

// AwaitGrant blocks until t has been admitted onto the track
func (a *Arbiter) AwaitGrant(ctx context.Context, t *Train) error {
	select {
	case <-t.granted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release marks t as having left the track and admits the next train
func (a *Arbiter) Release(t *Train) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if t.Phase() == Crossing && a.state.TrainsCrossing != 1 {
		return NewInvariantError(ErrCodeMutualExclusion, t.ID,
			fmt.Sprintf("release with %d trains crossing", a.state.TrainsCrossing))
	}
	tr, err := t.advance(EventCleared)
	if err != nil {
		return err
	}
	a.state.TrainsCrossing = 0
	a.state.Crossed++
	a.order = append(a.order, t.ID)
	a.observers.NotifyPhaseChange(t, tr, a.clock.Elapsed())
	if a.tracker != nil {
		a.tracker.MarkCrossed()
	}

	return a.dispatch()
}

// dispatch evaluates the admission predicate and grants at most one train.
// The caller holds the mutex.
func (a *Arbiter) dispatch() error {
	d := a.policy.Admit(a.east.PeekHead(), a.west.PeekHead(), a.state)
	if !d.Admitted() {
		return nil
	}
	t := d.Train

	if err := a.queue(t.Direction).PopHead(t); err != nil {
		return err
	}
	tr, err := t.advance(EventGranted)
	if err != nil {
		return err
	}
	a.state.TrainsCrossing++
	if a.state.TrainsCrossing != 1 {
		return NewInvariantError(ErrCodeMutualExclusion, t.ID,
			fmt.Sprintf("%d trains on the main track", a.state.TrainsCrossing))
	}
	a.state.LastDirection = t.Direction
	a.state.Streak = d.Streak

	at := a.clock.Elapsed()
	a.observers.NotifyGrant(d, a.state, at)
	a.observers.NotifyPhaseChange(t, tr, at)
	close(t.granted)
	return nil
}

// State returns a copy of the scheduler state
func (a *Arbiter) State() SchedulerState {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state
}

// Queued returns the waiting train IDs of direction d in crossing order
func (a *Arbiter) Queued(d Direction) []int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.queue(d).Snapshot()
}

// Order returns the IDs of crossed trains in crossing order
func (a *Arbiter) Order() []int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	out := make([]int, len(a.order))
	copy(out, a.order)
	return out
}

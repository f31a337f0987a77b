package mts

import (
	"context"
	"sync"
	"testing"
	"time"
)

// RecordingObserver is an observer for tests that captures every notification
type RecordingObserver struct {
	mutex    sync.RWMutex
	Steps    []PhaseStep
	Grants   []GrantRecord
	Started  []RunInfo
	Finished []*Result
	Errors   []error
}

// PhaseStep is one recorded lifecycle step
type PhaseStep struct {
	TrainID    int
	Transition Transition
	At         time.Duration
}

// GrantRecord is one recorded admission decision
type GrantRecord struct {
	Decision Decision
	State    SchedulerState
	At       time.Duration
}

// NewRecordingObserver creates a new recording observer
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (o *RecordingObserver) OnPhaseChange(t *Train, tr Transition, at time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Steps = append(o.Steps, PhaseStep{TrainID: t.ID, Transition: tr, At: at})
}

func (o *RecordingObserver) OnGrant(d Decision, state SchedulerState, at time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Grants = append(o.Grants, GrantRecord{Decision: d, State: state, At: at})
}

func (o *RecordingObserver) OnSimulationStarted(info RunInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Started = append(o.Started, info)
}

func (o *RecordingObserver) OnSimulationFinished(res *Result) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Finished = append(o.Finished, res)
}

func (o *RecordingObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

// GrantOrder returns the admitted train IDs in grant order
func (o *RecordingObserver) GrantOrder() []int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	ids := make([]int, len(o.Grants))
	for i, g := range o.Grants {
		ids[i] = g.Decision.Train.ID
	}
	return ids
}

// StepsOf returns the recorded lifecycle steps of one train
func (o *RecordingObserver) StepsOf(trainID int) []PhaseStep {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	var steps []PhaseStep
	for _, s := range o.Steps {
		if s.TrainID == trainID {
			steps = append(steps, s)
		}
	}
	return steps
}

// StepCount returns the number of recorded lifecycle steps
func (o *RecordingObserver) StepCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Steps)
}

// Reset drops everything recorded so far
func (o *RecordingObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Steps = nil
	o.Grants = nil
	o.Started = nil
	o.Finished = nil
	o.Errors = nil
}

// ManualClock is a Clock whose time only moves when told to. Sleep
// returns at once, so it suits arbiter tests that drive workers by hand.
type ManualClock struct {
	mutex sync.Mutex
	now   time.Duration
}

// NewManualClock creates a clock at zero
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Start() {}

func (c *ManualClock) Elapsed() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now += d
}

// Test train builders

// EastSpec creates an east bound spec with load and cross times in tenths
func EastSpec(p Priority, load, cross int) TrainSpec {
	return TrainSpec{Direction: East, Priority: p, LoadTime: Tenths(load), CrossTime: Tenths(cross)}
}

// WestSpec creates a west bound spec with load and cross times in tenths
func WestSpec(p Priority, load, cross int) TrainSpec {
	return TrainSpec{Direction: West, Priority: p, LoadTime: Tenths(load), CrossTime: Tenths(cross)}
}

// Test assertions and utilities

// AssertPhase checks that a train is in the expected phase
func AssertPhase(t *testing.T, train *Train, expected Phase) {
	t.Helper()
	if train.Phase() != expected {
		t.Errorf("Expected train %d in phase %s, got %s", train.ID, expected, train.Phase())
	}
}

// AssertGranted checks that a train's grant has been delivered
func AssertGranted(t *testing.T, train *Train) {
	t.Helper()
	select {
	case <-train.granted:
	default:
		t.Errorf("Expected train %d to be granted the track", train.ID)
	}
}

// AssertWaiting checks that a train has not been granted the track
func AssertWaiting(t *testing.T, train *Train) {
	t.Helper()
	select {
	case <-train.granted:
		t.Errorf("Expected train %d to still be waiting", train.ID)
	default:
	}
}

// AssertLifecycle checks that every train went through all three events in order
func AssertLifecycle(t *testing.T, observer *RecordingObserver, trains int) {
	t.Helper()
	for id := 0; id < trains; id++ {
		steps := observer.StepsOf(id)
		if len(steps) != 3 {
			t.Errorf("Expected 3 lifecycle steps for train %d, got %d", id, len(steps))
			continue
		}
		for i, tr := range lifecycle {
			if steps[i].Transition != tr {
				t.Errorf("Train %d step %d: expected %s->%s, got %s->%s",
					id, i, tr.From, tr.To, steps[i].Transition.From, steps[i].Transition.To)
			}
			if i > 0 && steps[i].At < steps[i-1].At {
				t.Errorf("Train %d step %d happened before step %d", id, i, i-1)
			}
		}
	}
}

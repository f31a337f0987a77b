package observers

import (
	"fmt"
	"sync"
	"time"

	"github.com/anggasct/mts"
)

// ValidationObserver checks scheduler invariants online from the event
// stream. It keeps its own model of the queues and never trusts the
// arbiter's bookkeeping.
type ValidationObserver struct {
	mts.BaseObserver

	fairnessCap int
	phases      map[int]mts.Phase
	waiting     map[waitKey][]int
	onTrack     int
	lastDir     mts.Direction
	streak      int
	violations  []string
	mutex       sync.RWMutex
}

type waitKey struct {
	direction mts.Direction
	priority  mts.Priority
}

// NewValidationObserver creates a new validation observer. The fairness
// cap is replaced by the run's own cap when the simulation starts.
func NewValidationObserver(fairnessCap int) *ValidationObserver {
	return &ValidationObserver{
		fairnessCap: fairnessCap,
		phases:      make(map[int]mts.Phase),
		waiting:     make(map[waitKey][]int),
		violations:  make([]string, 0),
	}
}

// violate records a violation. The caller holds the mutex.
func (o *ValidationObserver) violate(format string, args ...interface{}) {
	o.violations = append(o.violations, fmt.Sprintf(format, args...))
}

// OnSimulationStarted picks up the fairness cap of the run
func (o *ValidationObserver) OnSimulationStarted(info mts.RunInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.fairnessCap = info.FairnessCap
}

// OnPhaseChange validates every lifecycle step
func (o *ValidationObserver) OnPhaseChange(t *mts.Train, tr mts.Transition, at time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if current := o.phases[t.ID]; tr.From != current || tr.To != current+1 {
		o.violate("train %d: step %s->%s while in %s", t.ID, tr.From, tr.To, current)
	}
	o.phases[t.ID] = tr.To

	key := waitKey{t.Direction, t.Priority}
	switch tr.To {
	case mts.Queued:
		o.waiting[key] = append(o.waiting[key], t.ID)
	case mts.Crossing:
		o.checkGrant(t, key)
	case mts.Crossed:
		o.onTrack--
	}
}

// checkGrant validates an admission. The caller holds the mutex.
func (o *ValidationObserver) checkGrant(t *mts.Train, key waitKey) {
	o.onTrack++
	if o.onTrack > 1 {
		o.violate("train %d: admitted with %d trains on the main track", t.ID, o.onTrack-1)
	}

	queue := o.waiting[key]
	switch {
	case len(queue) == 0:
		o.violate("train %d: admitted without being queued", t.ID)
	case queue[0] != t.ID:
		o.violate("train %d: admitted ahead of train %d (%s %s)", t.ID, queue[0], t.Priority, t.Direction)
	}
	o.waiting[key] = remove(queue, t.ID)

	if t.Priority == mts.Normal {
		for _, d := range []mts.Direction{mts.East, mts.West} {
			if waiting := o.waiting[waitKey{d, mts.High}]; len(waiting) > 0 {
				o.violate("train %d: Normal train admitted while High train %d waits", t.ID, waiting[0])
			}
		}
	}

	if t.Direction == o.lastDir {
		o.streak++
	} else {
		o.lastDir, o.streak = t.Direction, 1
	}
	if o.streak > o.fairnessCap && o.contested(t) {
		o.violate("train %d: %d consecutive %s crossings exceed fairness cap %d",
			t.ID, o.streak, t.Direction, o.fairnessCap)
	}
}

// contested reports whether the opposite direction has a train waiting
// with priority at least t's
func (o *ValidationObserver) contested(t *mts.Train) bool {
	opposite := t.Direction.Opposite()
	if len(o.waiting[waitKey{opposite, mts.High}]) > 0 {
		return true
	}
	return t.Priority == mts.Normal && len(o.waiting[waitKey{opposite, mts.Normal}]) > 0
}

func remove(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// OnGrant cross-checks the arbiter's streak against the observed one
func (o *ValidationObserver) OnGrant(d mts.Decision, state mts.SchedulerState, at time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if state.TrainsCrossing != 1 {
		o.violate("train %d: granted with trains crossing = %d", d.Train.ID, state.TrainsCrossing)
	}
	if d.Streak != state.Streak {
		o.violate("train %d: decision streak %d but scheduler streak %d", d.Train.ID, d.Streak, state.Streak)
	}
}

// OnSimulationFinished checks that every train crossed exactly once
func (o *ValidationObserver) OnSimulationFinished(res *mts.Result) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if res.Crossed != len(o.phases) {
		o.violate("run finished with %d of %d trains crossed", res.Crossed, len(o.phases))
	}
	for id, phase := range o.phases {
		if phase != mts.Crossed {
			o.violate("train %d: run finished while %s", id, phase)
		}
	}
}

// OnError records errors as violations
func (o *ValidationObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violate("Error occurred: %v", err)
}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.phases = make(map[int]mts.Phase)
	o.waiting = make(map[waitKey][]int)
	o.onTrack = 0
	o.lastDir = mts.NoDirection
	o.streak = 0
	o.violations = make([]string, 0)
}

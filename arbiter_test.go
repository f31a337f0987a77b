package mts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type arbiterHarness struct {
	arbiter  *Arbiter
	observer *RecordingObserver
	tracker  *CompletionTracker
	clock    *ManualClock
	trains   []*Train
}

func newArbiterHarness(t *testing.T, fairnessCap int, specs ...TrainSpec) *arbiterHarness {
	t.Helper()
	h := &arbiterHarness{
		observer: NewRecordingObserver(),
		tracker:  NewCompletionTracker(len(specs)),
		clock:    NewManualClock(),
	}
	observers := NewObserverManager()
	observers.AddObserver(h.observer)
	h.arbiter = NewArbiter(NewPolicy(fairnessCap), h.clock, observers, h.tracker)
	for i, spec := range specs {
		h.trains = append(h.trains, NewTrain(i, spec))
	}
	return h
}

func (h *arbiterHarness) enqueue(t *testing.T, ids ...int) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, h.arbiter.Enqueue(h.trains[id]))
	}
}

// drain releases whichever train holds the track until every train has crossed
func (h *arbiterHarness) drain(t *testing.T) []int {
	t.Helper()
	for h.tracker.Crossed() < len(h.trains) {
		var crossing *Train
		for _, tr := range h.trains {
			if tr.Phase() == Crossing {
				require.Nil(t, crossing, "two trains crossing")
				crossing = tr
			}
		}
		require.NotNil(t, crossing, "no train on the track with %d crossed", h.tracker.Crossed())
		h.clock.Advance(crossing.CrossTime)
		require.NoError(t, h.arbiter.Release(crossing))
	}
	return h.arbiter.Order()
}

func TestArbiter_GrantsImmediatelyWhenTrackFree(t *testing.T) {
	h := newArbiterHarness(t, 2, EastSpec(Normal, 1, 1))

	h.enqueue(t, 0)

	AssertPhase(t, h.trains[0], Crossing)
	AssertGranted(t, h.trains[0])
	require.NoError(t, h.arbiter.AwaitGrant(context.Background(), h.trains[0]))
	assert.Equal(t, SchedulerState{LastDirection: East, Streak: 1, TrainsCrossing: 1}, h.arbiter.State())
	assert.Empty(t, h.arbiter.Queued(East))
}

func TestArbiter_MutualExclusion(t *testing.T) {
	h := newArbiterHarness(t, 2,
		EastSpec(Normal, 1, 1),
		WestSpec(High, 1, 1),
		EastSpec(High, 1, 1),
	)

	h.enqueue(t, 0, 1, 2)

	AssertPhase(t, h.trains[0], Crossing)
	AssertWaiting(t, h.trains[1])
	AssertWaiting(t, h.trains[2])
	assert.Equal(t, 1, h.arbiter.State().TrainsCrossing)
	assert.Equal(t, []int{1}, h.arbiter.Queued(West))
	assert.Equal(t, []int{2}, h.arbiter.Queued(East))
}

func TestArbiter_ScenarioA(t *testing.T) {
	specs := []TrainSpec{
		EastSpec(High, 1, 1),
		WestSpec(Normal, 1, 1),
		EastSpec(Normal, 1, 1),
	}

	t.Run("default cap lets east continue its streak", func(t *testing.T) {
		h := newArbiterHarness(t, DefaultFairnessCap, specs...)
		h.enqueue(t, 0, 1, 2)
		if diff := cmp.Diff([]int{0, 2, 1}, h.drain(t)); diff != "" {
			t.Errorf("crossing order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("cap of one alternates", func(t *testing.T) {
		h := newArbiterHarness(t, 1, specs...)
		h.enqueue(t, 0, 1, 2)
		if diff := cmp.Diff([]int{0, 1, 2}, h.drain(t)); diff != "" {
			t.Errorf("crossing order mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestArbiter_ScenarioB(t *testing.T) {
	h := newArbiterHarness(t, 2,
		EastSpec(Normal, 1, 1),
		EastSpec(Normal, 1, 1),
		EastSpec(Normal, 1, 1),
	)

	h.enqueue(t, 0, 1, 2)

	assert.Equal(t, []int{0, 1, 2}, h.drain(t))
	state := h.arbiter.State()
	assert.Equal(t, 3, state.Streak)
	assert.Equal(t, 3, state.Crossed)
}

func TestArbiter_ScenarioD(t *testing.T) {
	specs := []TrainSpec{
		EastSpec(Normal, 1, 1),
		WestSpec(Normal, 1, 1),
		EastSpec(Normal, 1, 1),
		WestSpec(Normal, 1, 1),
	}

	t.Run("cap of one alternates strictly", func(t *testing.T) {
		h := newArbiterHarness(t, 1, specs...)
		h.enqueue(t, 0, 1, 2, 3)
		if diff := cmp.Diff([]int{0, 1, 2, 3}, h.drain(t)); diff != "" {
			t.Errorf("crossing order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("default cap pairs crossings", func(t *testing.T) {
		h := newArbiterHarness(t, DefaultFairnessCap, specs...)
		h.enqueue(t, 0, 1, 2, 3)
		if diff := cmp.Diff([]int{0, 2, 1, 3}, h.drain(t)); diff != "" {
			t.Errorf("crossing order mismatch (-want +got):\n%s", diff)
		}
		rules := make([]Rule, 0, len(h.observer.Grants))
		for _, g := range h.observer.Grants {
			rules = append(rules, g.Decision.Rule)
		}
		assert.Equal(t, []Rule{RuleUncontested, RuleStreak, RuleUncontested, RuleUncontested}, rules)
	})
}

func TestArbiter_SimultaneousArrivalsRankedByID(t *testing.T) {
	h := newArbiterHarness(t, DefaultFairnessCap,
		EastSpec(High, 1, 1),
		WestSpec(Normal, 1, 1),
		EastSpec(Normal, 1, 1),
	)
	h.arbiter.ExpectArrivals(h.trains)

	// lock order is the reverse of file order
	h.enqueue(t, 1, 2)
	AssertWaiting(t, h.trains[1])
	AssertWaiting(t, h.trains[2])
	assert.Empty(t, h.arbiter.Queued(East))
	assert.Empty(t, h.arbiter.Queued(West))
	assert.Zero(t, h.observer.StepCount())

	h.enqueue(t, 0)
	AssertGranted(t, h.trains[0])
	assert.Equal(t, []int{2}, h.arbiter.Queued(East))
	assert.Equal(t, []int{1}, h.arbiter.Queued(West))
	assert.Equal(t, []int{0, 2, 1}, h.drain(t))

	var ready []int
	for _, s := range h.observer.Steps {
		if s.Transition.To == Queued {
			ready = append(ready, s.TrainID)
		}
	}
	assert.Equal(t, []int{0, 1, 2}, ready)
}

func TestArbiter_SimultaneousSameDirectionIsFIFOByID(t *testing.T) {
	h := newArbiterHarness(t, DefaultFairnessCap,
		EastSpec(Normal, 4, 1),
		EastSpec(Normal, 4, 1),
		EastSpec(Normal, 4, 1),
		EastSpec(Normal, 4, 1),
	)
	h.arbiter.ExpectArrivals(h.trains)

	h.enqueue(t, 3, 1, 2, 0)

	AssertGranted(t, h.trains[0])
	assert.Equal(t, []int{1, 2, 3}, h.arbiter.Queued(East))
	assert.Equal(t, []int{0, 1, 2, 3}, h.drain(t))
}

func TestArbiter_LaterArrivalWaitsForEarlierInstant(t *testing.T) {
	h := newArbiterHarness(t, DefaultFairnessCap,
		EastSpec(Normal, 1, 1),
		WestSpec(Normal, 1, 1),
		WestSpec(High, 3, 1),
	)
	h.arbiter.ExpectArrivals(h.trains)

	// the load 3 train reaches the lock while the load 1 batch is incomplete
	h.enqueue(t, 2, 1)
	AssertWaiting(t, h.trains[1])
	AssertWaiting(t, h.trains[2])
	assert.Empty(t, h.arbiter.Queued(West))

	h.enqueue(t, 0)
	AssertGranted(t, h.trains[0])
	assert.Equal(t, []int{2, 1}, h.arbiter.Queued(West))
	assert.Equal(t, []int{0, 2, 1}, h.drain(t))
}

func TestArbiter_BatchedEnqueueRejectsRepeat(t *testing.T) {
	h := newArbiterHarness(t, DefaultFairnessCap, EastSpec(Normal, 1, 1), EastSpec(Normal, 1, 1))
	h.arbiter.ExpectArrivals(h.trains)

	h.enqueue(t, 1)
	err := h.arbiter.Enqueue(h.trains[1])
	require.Error(t, err)
	assert.True(t, IsPhaseError(err))

	h.enqueue(t, 0)
	assert.Equal(t, []int{0, 1}, h.drain(t))
}

func TestArbiter_PriorityDominance(t *testing.T) {
	h := newArbiterHarness(t, 2,
		EastSpec(Normal, 1, 1), // holds the track
		WestSpec(Normal, 1, 1),
		EastSpec(High, 1, 1),
		WestSpec(High, 1, 1),
	)
	h.enqueue(t, 0, 1, 2, 3)

	order := h.drain(t)

	// both High trains before the waiting Normal one; High west yields to
	// High east because east holds a streak of one below the cap
	assert.Equal(t, []int{0, 2, 3, 1}, order)
}

func TestArbiter_HighArrivingLaterQueuesAhead(t *testing.T) {
	h := newArbiterHarness(t, 2,
		EastSpec(Normal, 1, 1),
		EastSpec(Normal, 1, 1),
		EastSpec(Normal, 1, 1),
		EastSpec(High, 1, 1),
	)
	h.enqueue(t, 0, 1, 2)
	h.enqueue(t, 3)

	// train 0 was already granted and is never displaced
	AssertPhase(t, h.trains[0], Crossing)
	assert.Equal(t, []int{3, 1, 2}, h.arbiter.Queued(East))
	assert.Equal(t, []int{0, 3, 1, 2}, h.drain(t))
}

func TestArbiter_FairnessCapBoundsStreak(t *testing.T) {
	specs := make([]TrainSpec, 0, 12)
	for i := 0; i < 6; i++ {
		specs = append(specs, EastSpec(Normal, 1, 1), WestSpec(Normal, 1, 1))
	}
	h := newArbiterHarness(t, 2, specs...)
	for i := range specs {
		h.enqueue(t, i)
	}
	h.drain(t)

	for _, g := range h.observer.Grants {
		assert.LessOrEqual(t, g.Decision.Streak, 2)
	}
}

func TestArbiter_PhaseErrors(t *testing.T) {
	h := newArbiterHarness(t, 2, EastSpec(Normal, 1, 1), EastSpec(Normal, 1, 1))
	h.enqueue(t, 0, 1)

	err := h.arbiter.Enqueue(h.trains[0])
	require.Error(t, err)
	assert.True(t, IsPhaseError(err))

	err = h.arbiter.Release(h.trains[1])
	require.Error(t, err)
	assert.True(t, IsPhaseError(err))
	assert.Equal(t, ErrCodePhaseNotAllowed, GetErrorCode(err))

	require.NoError(t, h.arbiter.Release(h.trains[0]))
	err = h.arbiter.Release(h.trains[0])
	require.Error(t, err)
	assert.True(t, IsPhaseError(err))
}

func TestArbiter_RejectsInvalidDirection(t *testing.T) {
	h := newArbiterHarness(t, 2)
	train := NewTrain(9, TrainSpec{})

	err := h.arbiter.Enqueue(train)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidTrain, GetErrorCode(err))
	AssertPhase(t, train, Loading)
}

func TestArbiter_AwaitGrantHonoursContext(t *testing.T) {
	h := newArbiterHarness(t, 2, EastSpec(Normal, 1, 1), EastSpec(Normal, 1, 1))
	h.enqueue(t, 0, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := h.arbiter.AwaitGrant(ctx, h.trains[1])
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestArbiter_NotifiesInDecisionOrder(t *testing.T) {
	h := newArbiterHarness(t, 2, EastSpec(Normal, 1, 3), WestSpec(Normal, 1, 2))
	h.enqueue(t, 0, 1)
	h.drain(t)

	AssertLifecycle(t, h.observer, 2)
	var kinds []EventKind
	var ids []int
	for _, s := range h.observer.Steps {
		kind, ok := KindOf(s.Transition)
		require.True(t, ok)
		kinds = append(kinds, kind)
		ids = append(ids, s.TrainID)
	}
	assert.Equal(t, []int{0, 0, 1, 0, 1, 1}, ids)
	assert.Equal(t, []EventKind{EventReady, EventOnTrack, EventReady, EventOffTrack, EventOnTrack, EventOffTrack}, kinds)

	steps := h.observer.StepsOf(1)
	assert.Equal(t, Tenths(3), steps[1].At)
	assert.Equal(t, Tenths(5), steps[2].At)
}

func TestArbiter_ConcurrentWorkers(t *testing.T) {
	const n = 64
	specs := make([]TrainSpec, n)
	for i := range specs {
		d, p := East, Normal
		if i%2 == 1 {
			d = West
		}
		if i%5 == 0 {
			p = High
		}
		specs[i] = TrainSpec{Direction: d, Priority: p}
	}
	h := newArbiterHarness(t, 2, specs...)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mutex    sync.Mutex
		onTrack  int
		overlaps int
	)
	for _, train := range h.trains {
		wg.Add(1)
		go func(train *Train) {
			defer wg.Done()
			assert.NoError(t, h.arbiter.Enqueue(train))
			assert.NoError(t, h.arbiter.AwaitGrant(ctx, train))
			mutex.Lock()
			onTrack++
			if onTrack > 1 {
				overlaps++
			}
			mutex.Unlock()
			time.Sleep(100 * time.Microsecond)
			mutex.Lock()
			onTrack--
			mutex.Unlock()
			assert.NoError(t, h.arbiter.Release(train))
		}(train)
	}
	wg.Wait()

	assert.Zero(t, overlaps)
	assert.Equal(t, n, h.tracker.Crossed())
	assert.Len(t, h.arbiter.Order(), n)
	select {
	case <-h.tracker.Done():
	default:
		t.Error("Expected tracker to be done")
	}
}

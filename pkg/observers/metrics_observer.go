package observers

import (
	"sort"
	"sync"
	"time"

	"github.com/anggasct/mts"
)

// MetricsObserver collects statistics about a crossing run
type MetricsObserver struct {
	mts.BaseObserver

	crossings     map[string]int
	ruleCounts    map[string]int
	readyAt       map[int]time.Duration
	waits         map[int]time.Duration
	longestStreak int
	streakDir     mts.Direction
	errorCount    int
	mutex         sync.RWMutex
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		crossings:  make(map[string]int),
		ruleCounts: make(map[string]int),
		readyAt:    make(map[int]time.Duration),
		waits:      make(map[int]time.Duration),
	}
}

// crossingKey groups crossings by direction and priority, e.g. "East/High"
func crossingKey(t *mts.Train) string {
	return t.Direction.String() + "/" + t.Priority.String()
}

// OnPhaseChange records ready times, waits and crossings
func (o *MetricsObserver) OnPhaseChange(t *mts.Train, tr mts.Transition, at time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	switch tr.To {
	case mts.Queued:
		o.readyAt[t.ID] = at
	case mts.Crossing:
		if ready, ok := o.readyAt[t.ID]; ok {
			o.waits[t.ID] = at - ready
		}
	case mts.Crossed:
		o.crossings[crossingKey(t)]++
	}
}

// OnGrant records which rule admitted each train and the longest streak
func (o *MetricsObserver) OnGrant(d mts.Decision, state mts.SchedulerState, at time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.ruleCounts[d.Rule.String()]++
	if state.Streak > o.longestStreak {
		o.longestStreak = state.Streak
		o.streakDir = state.LastDirection
	}
}

// OnError records error metrics
func (o *MetricsObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.errorCount++
}

// GetCrossingCounts returns crossings keyed by "Direction/Priority"
func (o *MetricsObserver) GetCrossingCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[string]int)
	for key, count := range o.crossings {
		result[key] = count
	}
	return result
}

// GetRuleCounts returns the number of grants made by each admission rule
func (o *MetricsObserver) GetRuleCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[string]int)
	for rule, count := range o.ruleCounts {
		result[rule] = count
	}
	return result
}

// GetWaitTimes returns the simulated time each train spent queued
func (o *MetricsObserver) GetWaitTimes() map[int]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[int]time.Duration)
	for id, wait := range o.waits {
		result[id] = wait
	}
	return result
}

// AverageWait returns the mean queue wait, 0 when nothing crossed
func (o *MetricsObserver) AverageWait() time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	if len(o.waits) == 0 {
		return 0
	}
	var total time.Duration
	for _, wait := range o.waits {
		total += wait
	}
	return total / time.Duration(len(o.waits))
}

// LongestWait returns the train that waited longest and its wait
func (o *MetricsObserver) LongestWait() (int, time.Duration) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	ids := make([]int, 0, len(o.waits))
	for id := range o.waits {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	longestID, longest := -1, time.Duration(-1)
	for _, id := range ids {
		if o.waits[id] > longest {
			longestID, longest = id, o.waits[id]
		}
	}
	if longestID < 0 {
		return -1, 0
	}
	return longestID, longest
}

// LongestStreak returns the longest run of consecutive grants and its direction
func (o *MetricsObserver) LongestStreak() (int, mts.Direction) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.longestStreak, o.streakDir
}

// GetErrorCount returns the number of errors
func (o *MetricsObserver) GetErrorCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.errorCount
}

// Reset resets all metrics
func (o *MetricsObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.crossings = make(map[string]int)
	o.ruleCounts = make(map[string]int)
	o.readyAt = make(map[int]time.Duration)
	o.waits = make(map[int]time.Duration)
	o.longestStreak = 0
	o.streakDir = mts.NoDirection
	o.errorCount = 0
}

package mts

import (
	"fmt"
	"sync"
	"time"
)

// Observer represents an entity that observes train lifecycles
type Observer interface {
	// OnPhaseChange is called for every lifecycle step, at simulated time at.
	// Calls are serialized by the arbiter and arrive in decision order.
	OnPhaseChange(t *Train, tr Transition, at time.Duration)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnGrant is called when the admission predicate grants the track.
	// state is the scheduler state after the grant.
	OnGrant(d Decision, state SchedulerState, at time.Duration)

	// OnSimulationStarted is called once the start barrier fires
	OnSimulationStarted(info RunInfo)

	// OnSimulationFinished is called after the last train crossed
	OnSimulationFinished(res *Result)

	// OnError is called when an error occurs during a run
	OnError(err error)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnPhaseChange implements the required Observer method
func (o *BaseObserver) OnPhaseChange(t *Train, tr Transition, at time.Duration) {}

// OnGrant implements the optional ExtendedObserver method
func (o *BaseObserver) OnGrant(d Decision, state SchedulerState, at time.Duration) {}

// OnSimulationStarted implements the optional ExtendedObserver method
func (o *BaseObserver) OnSimulationStarted(info RunInfo) {}

// OnSimulationFinished implements the optional ExtendedObserver method
func (o *BaseObserver) OnSimulationFinished(res *Result) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(err error) {}

// ObserverManager manages a collection of observers
type ObserverManager struct {
	mutex     sync.RWMutex
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

func (om *ObserverManager) snapshot() []Observer {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)
	return observers
}

// guard runs fn and turns an observer panic into an OnError notification
func guard(observer Observer, method string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if extObs, ok := observer.(ExtendedObserver); ok {
				func() {
					defer func() { recover() }()
					extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r))
				}()
			}
		}
	}()
	fn()
}

// NotifyPhaseChange notifies all observers of a lifecycle step
func (om *ObserverManager) NotifyPhaseChange(t *Train, tr Transition, at time.Duration) {
	for _, observer := range om.snapshot() {
		observer := observer
		guard(observer, "OnPhaseChange", func() {
			observer.OnPhaseChange(t, tr, at)
		})
	}
}

// NotifyGrant notifies all observers of an admission decision
func (om *ObserverManager) NotifyGrant(d Decision, state SchedulerState, at time.Duration) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			guard(observer, "OnGrant", func() {
				extObs.OnGrant(d, state, at)
			})
		}
	}
}

// NotifySimulationStarted notifies all observers that the run has started
func (om *ObserverManager) NotifySimulationStarted(info RunInfo) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			guard(observer, "OnSimulationStarted", func() {
				extObs.OnSimulationStarted(info)
			})
		}
	}
}

// NotifySimulationFinished notifies all observers that the run has finished
func (om *ObserverManager) NotifySimulationFinished(res *Result) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			guard(observer, "OnSimulationFinished", func() {
				extObs.OnSimulationFinished(res)
			})
		}
	}
}

// NotifyError notifies all observers of errors
func (om *ObserverManager) NotifyError(err error) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			func() {
				defer func() { recover() }()
				extObs.OnError(err)
			}()
		}
	}
}

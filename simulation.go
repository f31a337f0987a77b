package mts

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunInfo describes a run when it starts
type RunInfo struct {
	RunID       uuid.UUID
	Trains      int
	FairnessCap int
}

// Result summarizes a finished run
type Result struct {
	RunID uuid.UUID
	// Order lists train IDs in the order they finished crossing.
	Order   []int
	Crossed int
	// Makespan is the simulated time from the start barrier to the last crossing.
	Makespan time.Duration
}

// Simulation runs one train per goroutine against a shared Arbiter
type Simulation struct {
	id        uuid.UUID
	config    Config
	trains    []*Train
	clock     Clock
	observers *ObserverManager
	started   atomic.Bool
}

// NewSimulation creates a simulation for the given trains. IDs are
// assigned in slice order starting at 0.
func NewSimulation(specs []TrainSpec, config Config) (*Simulation, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	trains := make([]*Train, len(specs))
	for i, spec := range specs {
		if !spec.Direction.Valid() {
			return nil, NewConfigurationError("TrainSpec", fmt.Sprintf("train %d: invalid direction", i))
		}
		if spec.LoadTime < 0 || spec.CrossTime < 0 {
			return nil, NewConfigurationError("TrainSpec", fmt.Sprintf("train %d: negative duration", i))
		}
		trains[i] = NewTrain(i, spec)
	}
	return &Simulation{
		id:        uuid.New(),
		config:    config,
		trains:    trains,
		clock:     config.clock(),
		observers: NewObserverManager(),
	}, nil
}

// ID returns the run identifier
func (s *Simulation) ID() uuid.UUID {
	return s.id
}

// Trains returns the trains of this run in ID order
func (s *Simulation) Trains() []*Train {
	out := make([]*Train, len(s.trains))
	copy(out, s.trains)
	return out
}

// AddObserver registers an observer. Observers must be added before Run.
func (s *Simulation) AddObserver(observer Observer) {
	s.observers.AddObserver(observer)
}

// RemoveObserver unregisters an observer
func (s *Simulation) RemoveObserver(observer Observer) {
	s.observers.RemoveObserver(observer)
}

// Run starts every train, fires the start barrier and blocks until all
// trains have crossed. A Simulation can only be run once.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	tracker := NewCompletionTracker(len(s.trains))
	arbiter := NewArbiter(NewPolicy(s.config.FairnessCap), s.clock, s.observers, tracker)
	arbiter.ExpectArrivals(s.trains)
	barrier := NewStartBarrier()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.trains {
		t := t
		g.Go(func() error {
			return s.runTrain(gctx, arbiter, barrier, t)
		})
	}

	s.clock.Start()
	s.observers.NotifySimulationStarted(RunInfo{
		RunID:       s.id,
		Trains:      len(s.trains),
		FairnessCap: s.config.FairnessCap,
	})
	barrier.Release()

	waitErr := tracker.Wait(gctx)
	if err := g.Wait(); err != nil {
		s.observers.NotifyError(err)
		return nil, err
	}
	if waitErr != nil {
		s.observers.NotifyError(waitErr)
		return nil, waitErr
	}

	res := &Result{
		RunID:    s.id,
		Order:    arbiter.Order(),
		Crossed:  tracker.Crossed(),
		Makespan: s.clock.Elapsed(),
	}
	s.observers.NotifySimulationFinished(res)
	return res, nil
}

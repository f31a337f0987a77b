package mts

import (
	"fmt"
	"time"
)

// ScheduleBuilder assembles trains and run settings fluently. The first
// invalid step is remembered and reported by Build.
type ScheduleBuilder struct {
	specs  []TrainSpec
	config Config
	err    error
}

// NewSchedule starts an empty schedule with the default configuration
func NewSchedule() *ScheduleBuilder {
	return &ScheduleBuilder{config: DefaultConfig()}
}

// East adds an east bound train
func (b *ScheduleBuilder) East(p Priority, load, cross time.Duration) *ScheduleBuilder {
	return b.Train(TrainSpec{Direction: East, Priority: p, LoadTime: load, CrossTime: cross})
}

// West adds a west bound train
func (b *ScheduleBuilder) West(p Priority, load, cross time.Duration) *ScheduleBuilder {
	return b.Train(TrainSpec{Direction: West, Priority: p, LoadTime: load, CrossTime: cross})
}

// Train adds a train. Its ID is its position in the schedule.
func (b *ScheduleBuilder) Train(spec TrainSpec) *ScheduleBuilder {
	if b.err == nil && !spec.Direction.Valid() {
		b.err = NewConfigurationError("ScheduleBuilder", fmt.Sprintf("train %d: invalid direction", len(b.specs)))
	}
	b.specs = append(b.specs, spec)
	return b
}

// WithFairnessCap sets the fairness cap
func (b *ScheduleBuilder) WithFairnessCap(n int) *ScheduleBuilder {
	b.config.FairnessCap = n
	return b
}

// WithTimeScale sets wall seconds per simulated second
func (b *ScheduleBuilder) WithTimeScale(scale float64) *ScheduleBuilder {
	b.config.TimeScale = scale
	return b
}

// WithClock replaces the scaled wall clock
func (b *ScheduleBuilder) WithClock(clock Clock) *ScheduleBuilder {
	b.config.Clock = clock
	return b
}

// Specs returns a copy of the trains added so far
func (b *ScheduleBuilder) Specs() []TrainSpec {
	out := make([]TrainSpec, len(b.specs))
	copy(out, b.specs)
	return out
}

// Config returns the configuration built so far
func (b *ScheduleBuilder) Config() Config {
	return b.config
}

// Build creates the simulation
func (b *ScheduleBuilder) Build() (*Simulation, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewSimulation(b.Specs(), b.config)
}

// Package mts simulates trains crossing a single shared bidirectional
// track. Every train loads on its own goroutine, queues in its direction
// and then waits for the Arbiter to grant it exclusive use of the main
// track. Admission follows a Policy that prefers High priority trains,
// bounds consecutive same-direction crossings with a fairness cap and
// keeps strict FIFO order among equal trains of one direction.
package mts

import "context"

// Run builds a simulation from specs, attaches observers and runs it to completion
func Run(ctx context.Context, specs []TrainSpec, config Config, observers ...Observer) (*Result, error) {
	sim, err := NewSimulation(specs, config)
	if err != nil {
		return nil, err
	}
	for _, observer := range observers {
		sim.AddObserver(observer)
	}
	return sim.Run(ctx)
}

package mts

import (
	"context"
	"fmt"
)

// runTrain is the worker of one train: wait for the start barrier, load,
// queue, wait for the grant, cross, release.
func (s *Simulation) runTrain(ctx context.Context, a *Arbiter, start *StartBarrier, t *Train) error {
	if err := start.Wait(ctx); err != nil {
		return err
	}
	// Loading never touches shared state.
	if err := s.clock.Sleep(ctx, t.LoadTime); err != nil {
		return err
	}
	if err := a.Enqueue(t); err != nil {
		return fmt.Errorf("train %d: enqueue: %w", t.ID, err)
	}
	if err := a.AwaitGrant(ctx, t); err != nil {
		return err
	}
	if err := s.clock.Sleep(ctx, t.CrossTime); err != nil {
		return err
	}
	if err := a.Release(t); err != nil {
		return fmt.Errorf("train %d: release: %w", t.ID, err)
	}
	return nil
}

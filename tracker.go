package mts

import (
	"context"
	"sync"
)

// CompletionTracker counts crossed trains against the number of trains in
// the run and signals once every one of them has crossed
type CompletionTracker struct {
	mutex   sync.Mutex
	total   int
	crossed int
	done    chan struct{}
}

// NewCompletionTracker creates a tracker for total trains. With no trains
// the tracker is complete immediately.
func NewCompletionTracker(total int) *CompletionTracker {
	c := &CompletionTracker{
		total: total,
		done:  make(chan struct{}),
	}
	if total == 0 {
		close(c.done)
	}
	return c
}

// MarkCrossed records one more crossed train and returns the new count
func (c *CompletionTracker) MarkCrossed() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.crossed++
	if c.crossed == c.total {
		close(c.done)
	}
	return c.crossed
}

// Crossed returns the number of trains that finished crossing
func (c *CompletionTracker) Crossed() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.crossed
}

// Total returns the number of trains the tracker waits for
func (c *CompletionTracker) Total() int {
	return c.total
}

// Done is closed once every train has crossed
func (c *CompletionTracker) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until every train has crossed or ctx is done
func (c *CompletionTracker) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

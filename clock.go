package mts

import (
	"context"
	"sync"
	"time"
)

// Tenth is the manifest time unit
const Tenth = 100 * time.Millisecond

// Tenths converts a manifest time value to a simulated duration
func Tenths(n int) time.Duration {
	return time.Duration(n) * Tenth
}

// Clock measures simulated time from a common zero point
type Clock interface {
	// Start sets the zero point. Elapsed is 0 before Start.
	Start()
	// Elapsed returns the simulated time since Start.
	Elapsed() time.Duration
	// Sleep blocks for the simulated duration d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// ScaledClock maps simulated time onto wall-clock time. A scale of 1 runs
// in real time; 0.01 runs a simulated second in 10ms.
type ScaledClock struct {
	scale float64
	mutex sync.RWMutex
	start time.Time
}

// NewScaledClock creates a clock running at the given scale
func NewScaledClock(scale float64) *ScaledClock {
	return &ScaledClock{scale: scale}
}

// Start sets the zero point
func (c *ScaledClock) Start() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.start = time.Now()
}

// Elapsed returns the simulated time since Start
func (c *ScaledClock) Elapsed() time.Duration {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.start.IsZero() {
		return 0
	}
	return time.Duration(float64(time.Since(c.start)) / c.scale)
}

// Sleep blocks for the simulated duration d
func (c *ScaledClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(float64(d) * c.scale))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartBarrier releases every waiting worker at once. It fires only once.
type StartBarrier struct {
	once sync.Once
	ch   chan struct{}
}

// NewStartBarrier creates a closed gate
func NewStartBarrier() *StartBarrier {
	return &StartBarrier{ch: make(chan struct{})}
}

// Release opens the gate for all current and future waiters
func (b *StartBarrier) Release() {
	b.once.Do(func() { close(b.ch) })
}

// Wait blocks until Release is called or ctx is done
func (b *StartBarrier) Wait(ctx context.Context) error {
	select {
	case <-b.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package synth

import (
	"context"
	"sync"
	"time"
)

// Gate serializes access to the primary provider. The streaming backend
// rejects or degrades under concurrent connections from one process, so only
// one synthesis may be in flight through it at any time, with an optional
// minimum interval between consecutive calls.
//
// A Gate is constructed and injected, never a package-level singleton, so
// tests own independent gates per case. A waiter honors its own context
// deadline; it never blocks unboundedly on the gate.
type Gate struct {
	slot        chan struct{}
	minInterval time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewGate creates a gate with an optional minimum interval between calls.
// Zero disables the throttle.
func NewGate(minInterval time.Duration) *Gate {
	return &Gate{
		slot:        make(chan struct{}, 1),
		minInterval: minInterval,
	}
}

// Acquire takes exclusive ownership of the primary provider, waiting for the
// current holder and the minimum-interval throttle as needed. It returns the
// context's error if ctx expires first, in which case the gate is not held.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	waitErr := g.waitMinInterval(ctx)
	if waitErr != nil {
		g.Release()

		return waitErr
	}

	g.mu.Lock()
	g.lastCall = time.Now()
	g.mu.Unlock()

	return nil
}

// Release returns the gate. Must be called exactly once per successful
// Acquire.
func (g *Gate) Release() {
	<-g.slot
}

func (g *Gate) waitMinInterval(ctx context.Context) error {
	if g.minInterval <= 0 {
		return nil
	}

	g.mu.Lock()
	last := g.lastCall
	g.mu.Unlock()

	if last.IsZero() {
		return nil
	}

	remaining := g.minInterval - time.Since(last)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package position holds the single-position cycle gate and the exit
// state machine that manages an open position until it closes.
package position

import "sync/atomic"

// CycleGate admits at most one trading cycle at a time. Acquisition is
// a compare-and-swap, so concurrent candidates cannot both enter.
type CycleGate struct {
	busy atomic.Bool
}

// NewCycleGate creates a released gate.
func NewCycleGate() *CycleGate {
	return &CycleGate{}
}

// TryAcquire claims the gate. Returns false when a cycle is running.
func (g *CycleGate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release opens the gate for the next cycle.
func (g *CycleGate) Release() {
	g.busy.Store(false)
}

// Busy reports whether a cycle holds the gate.
func (g *CycleGate) Busy() bool {
	return g.busy.Load()
}

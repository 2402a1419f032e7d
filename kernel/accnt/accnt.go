// Package accnt accumulates per-task CPU usage. talus has no real-time
// clock source, only the tick counter from kernel/pit, so usage is
// tracked in ticks rather than wall-clock nanoseconds.
package accnt

import "sync/atomic"

// Account accumulates the tick count a task has run for. The embedded
// atomic counter lets the scheduler update it from the tick callback
// without a separate lock.
type Account struct {
	ticks atomic.Uint64
}

// Add adds delta ticks to the running total.
func (a *Account) Add(delta uint64) {
	a.ticks.Add(delta)
}

// Ticks returns the accumulated tick count.
func (a *Account) Ticks() uint64 {
	return a.ticks.Load()
}

// Merge folds another Account's total into this one, for reparenting
// usage onto a parent when a task is reaped.
func (a *Account) Merge(other *Account) {
	a.ticks.Add(other.Ticks())
}

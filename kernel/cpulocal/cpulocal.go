// Package cpulocal tracks the current execution context: whatever task is
// presently running on the (single) hardware core, generalized from a
// per-CPU array to one global slot since talus runs on one core.
package cpulocal

import "sync/atomic"

// Holder is a typed slot for "the thing currently running here". It is
// generic so kernel/sched can own its own Task type without cpulocal
// importing it back.
type Holder[T any] struct {
	ptr atomic.Pointer[T]
}

// Current returns the currently installed value. It panics if nothing is
// installed — reading the current task before one has been set is a
// programming error, not a recoverable condition, matching the contract
// this was generalized from.
func (h *Holder[T]) Current() *T {
	p := h.ptr.Load()
	if p == nil {
		panic("cpulocal: no current value installed")
	}
	return p
}

// SetCurrent installs p as the current value. It panics on a nil
// argument and on overwriting an already-installed value without an
// intervening Clear, matching the contract this was generalized from.
func (h *Holder[T]) SetCurrent(p *T) {
	if p == nil {
		panic("cpulocal: SetCurrent(nil)")
	}
	if !h.ptr.CompareAndSwap(nil, p) {
		panic("cpulocal: SetCurrent called with a value already installed")
	}
}

// Clear removes the current value. It panics if nothing was installed.
func (h *Holder[T]) Clear() {
	if h.ptr.Swap(nil) == nil {
		panic("cpulocal: Clear called with no current value installed")
	}
}

// TryCurrent returns the currently installed value and whether one is
// installed, without panicking. Used by code that must tolerate running
// before the first task is scheduled (e.g. early boot logging).
func (h *Holder[T]) TryCurrent() (*T, bool) {
	p := h.ptr.Load()
	return p, p != nil
}

// Package pit drives the periodic tick source: a single channel of the
// interval timer programmed to a fixed frequency, with one registered
// callback invoked per tick, component E of the execution
// substrate.
package pit

import "sync/atomic"

const (
	// DefaultHz is the tick rate used unless the scheduler requests a
	// finer one.
	DefaultHz = 100
	SchedHz   = 1000

	// baseFreq is the PIT's fixed oscillator frequency; the programmed
	// divisor is baseFreq/hz.
	baseFreq = 1193182
)

var (
	ticks    atomic.Uint64
	callback func(uint64)
	hz       uint32 = DefaultHz
)

// Divisor returns the 16-bit reload value to program into the timer's
// count register for the given frequency.
func Divisor(targetHz uint32) uint16 {
	d := baseFreq / targetHz
	if d > 0xFFFF {
		d = 0xFFFF
	}
	if d == 0 {
		d = 1
	}
	return uint16(d)
}

// SetFrequency records the configured tick rate. It does not itself
// reprogram hardware; a platform layer reads Hz to compute the divisor it
// loads.
func SetFrequency(targetHz uint32) {
	hz = targetHz
}

// Hz reports the configured tick rate.
func Hz() uint32 { return hz }

// Register installs the single tick callback. Registering a
// new callback replaces any previous one; talus has exactly one
// consumer — the scheduler — at a time.
func Register(cb func(tick uint64)) {
	callback = cb
}

// Fire is invoked by the timer interrupt trampoline on every tick. It
// advances the tick counter and, if one is registered, invokes the
// callback with the new count.
func Fire() {
	n := ticks.Add(1)
	if callback != nil {
		callback(n)
	}
}

// Ticks returns the current tick count.
func Ticks() uint64 { return ticks.Load() }

// MillisToTicks converts a millisecond duration to a tick count at the
// configured frequency, rounding up so a caller never sleeps for less
// than requested.
func MillisToTicks(ms uint64) uint64 {
	return (ms*uint64(hz) + 999) / 1000
}

// idleHook is invoked by Sleep between checks of the tick counter; the
// idle task's real implementation issues HLT. Tests substitute a no-op
// or counting stub so Sleep terminates deterministically.
var idleHook = func() {}

// SetIdleHook installs the wait primitive Sleep uses between polls of the
// tick counter.
func SetIdleHook(f func()) {
	idleHook = f
}

// Sleep blocks the calling execution context until at least ms
// milliseconds of tick time have elapsed.
func Sleep(ms uint64) {
	deadline := Ticks() + MillisToTicks(ms)
	for Ticks() < deadline {
		idleHook()
	}
}

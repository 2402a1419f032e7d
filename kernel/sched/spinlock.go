package sched

import "sync/atomic"

// spinlock is the task lock. It guards the task table, queues, and
// lifecycle field mutations against future SMP; on talus's single core
// it additionally serializes against interrupt handlers that run with
// the hardware interrupt flag cleared while holding it.
type spinlock struct {
	held atomic.Bool
}

// pause is the backoff primitive spun between failed acquisition
// attempts. It defaults to nothing; a platform layer installs the PAUSE
// instruction here, and tests install a call counter.
var pause = func() {}

// SetPauseHook installs the backoff primitive spinlock.Lock calls
// between failed compare-and-swap attempts.
func SetPauseHook(f func()) {
	pause = f
}

func (l *spinlock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		pause()
	}
}

func (l *spinlock) Unlock() {
	l.held.Store(false)
}

package sched

import (
	"talus/kernel/klog"
	"talus/kernel/mem"
)

// restoreContext is the seam that actually reloads CR3 and the saved
// register file via iretq. Real hardware needs an assembly trampoline;
// tests substitute a recording stub. saveContext captures the currently
// running context into prev before switching away from it.
var (
	saveContext    = func(t *Task) {}
	restoreContext = func(t *Task) {}
)

// SetContextHooks installs the platform primitives ContextSwitch uses to
// save the outgoing task's registers and restore the incoming one.
func SetContextHooks(save, restore func(t *Task)) {
	saveContext = save
	restoreContext = restore
}

// ContextSwitch performs one dispatch. Called with the task lock held
// and interrupts disabled; next must not be nil (idle is always a valid
// next when the ready queue is empty).
func (s *Scheduler) ContextSwitch(prev, next *Task) {
	if prev != nil && prev.State == StateRunning {
		prev.State = StateReady
		saveContext(prev)
	}
	next.State = StateRunning
	next.LastScheduled = next.Account.Ticks()

	// RegisterIdle always installs an initial current value before the
	// first ContextSwitch runs, so there is always something to clear
	// here — even when prev is nil (a task terminated while Running and
	// never got to mark itself Ready).
	s.current.Clear()
	s.current.SetCurrent(next)
	if s.gdtTable != nil {
		s.gdtTable.SetRing0Stack(next.Context.RSP)
	}
	restoreContext(next)
	s.stats.ContextSwitches.Inc()
}

// pickNext returns the idle task when the ready queue is empty, or pops
// the head otherwise.
func (s *Scheduler) pickNext() *Task {
	if t := s.ready.popFront(); t != nil {
		return t
	}
	return s.idle
}

// Yield voluntarily gives up the CPU, returning the current task to the
// back of the ready queue and switching to the next one.
func (s *Scheduler) Yield() {
	s.lock.Lock()
	defer s.lock.Unlock()
	prev := s.current.Current()
	if prev != s.idle {
		s.ready.pushBack(prev)
	}
	next := s.pickNext()
	if next != prev {
		s.ContextSwitch(prev, next)
	}
}

// OnTick is the tick callback the scheduler installs with kernel/pit. It
// first checks the descriptor table's integrity (recovering it from the
// backup if the check fails), then advances the current task's accumulated ticks and, if its quantum has
// expired (or it is no longer Running), performs exactly one context
// switch, never more than one per tick.
func (s *Scheduler) OnTick(tick uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.gdtTable != nil && !s.gdtTable.Check() {
		s.gdtTable.Recover()
	}

	cur := s.current.Current()
	cur.Account.Add(1)

	expired := cur != s.idle && cur.Account.Ticks()-cur.LastScheduled >= cur.QuantumTicks
	blockedMidTick := cur.State != StateRunning

	if !expired && !blockedMidTick {
		return
	}

	if cur.State == StateRunning {
		s.ready.pushBack(cur)
		s.stats.Preemptions.Inc()
	}
	next := s.pickNext()
	s.ContextSwitch(cur, next)
}

// Terminate marks t Terminated, releases its owned resources, and
// removes it from whatever queue it was in. It must not be called on
// the idle task.
func (s *Scheduler) Terminate(t *Task, exitCode int) {
	s.lock.Lock()
	wasRunning := t.State == StateRunning
	t.State = StateTerminated
	t.ExitCode = exitCode
	s.ready.remove(t)
	s.blocked.remove(t)
	s.lookup.Del(t.ID)
	s.stats.Terminated.Inc()
	var next *Task
	if wasRunning {
		next = s.pickNext()
	}
	s.lock.Unlock()

	if t.AddrSpace != nil {
		// AddrSpace.Delete only frees interior page-table nodes; the leaf
		// data/stack frames it still points at must be unmapped first or
		// they leak.
		if t.StackSize != 0 {
			t.AddrSpace.UnmapPages(t.StackBase, int(t.StackSize/mem.PageSize))
		}
		if t.ImageTop != 0 {
			span := t.ImageTop - t.ImageBase
			pages := (span + mem.PageSize - 1) / mem.PageSize
			t.AddrSpace.UnmapPages(t.ImageBase, int(pages))
		}
		t.AddrSpace.Delete()
		t.AddrSpace = nil
	}
	t.StackSize = 0

	klog.Infof("sched: terminated task %d exit=%d", t.ID, exitCode)

	if wasRunning {
		s.lock.Lock()
		s.ContextSwitch(nil, next)
		s.lock.Unlock()
	}
}

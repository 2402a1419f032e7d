package sched

import (
	"strings"

	"talus/kernel/defs"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// TaskSnapshot is a point-in-time, copy-safe view of one task, suitable
// for logging or a debug dump.
type TaskSnapshot struct {
	ID    defs.Tid_t
	Name  string
	State State
	Ticks uint64
}

// Snapshot is a point-in-time view of the whole scheduler: the aggregate
// counters plus every live task's accumulated tick count.
type Snapshot struct {
	Counters CounterSnapshot
	Tasks    []TaskSnapshot
}

// Snapshot captures the current scheduler state for reporting.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{Counters: s.GetStats()}
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.table {
		t := &s.table[i]
		if !t.InUse() && i != 0 {
			continue
		}
		snap.Tasks = append(snap.Tasks, TaskSnapshot{
			ID:    t.ID,
			Name:  t.Name.String(),
			State: t.State,
			Ticks: t.Account.Ticks(),
		})
	}
	return snap
}

// String renders the snapshot with locale-grouped tick counts.
func (snap Snapshot) String() string {
	var b strings.Builder
	b.WriteString(printer.Sprintf("tasks created: %d, terminated: %d, context switches: %d, preemptions: %d\n",
		snap.Counters.Created, snap.Counters.Terminated, snap.Counters.ContextSwitches, snap.Counters.Preemptions))
	for _, t := range snap.Tasks {
		b.WriteString(printer.Sprintf("\t#%d %s: %s, %d ticks\n", t.ID, t.Name, t.State, t.Ticks))
	}
	return b.String()
}

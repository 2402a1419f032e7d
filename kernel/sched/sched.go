package sched

import (
	"talus/kernel/cpulocal"
	"talus/kernel/cstr"
	"talus/kernel/defs"
	"talus/kernel/elf"
	"talus/kernel/gdt"
	"talus/kernel/hashtable"
	"talus/kernel/klog"
	"talus/kernel/limits"
	"talus/kernel/oommsg"
	"talus/kernel/stats"
	"talus/kernel/vmm"
)

// Counters are the always-on scheduler statistics.
type Counters struct {
	Created         stats.Counter
	Terminated      stats.Counter
	ContextSwitches stats.Counter
	Preemptions     stats.Counter
}

// Scheduler owns the task table, ready/blocked queues, and the current
// task pointer.
type Scheduler struct {
	lock spinlock

	table  [limits.MaxTasks]Task
	lookup *hashtable.Table[defs.Tid_t, *Task]
	nextID defs.Tid_t

	ready   readyQueue
	blocked blockedQueue

	current  cpulocal.Holder[Task]
	idle     *Task
	gdtTable *gdt.Table
	quantum  uint64
	stats    Counters
}

func idHash(id defs.Tid_t) uint32 { return uint32(id) }

// New builds an uninitialized scheduler. Call RegisterIdle before
// anything else runs.
func New(gdtTable *gdt.Table, quantumTicks uint64) *Scheduler {
	return &Scheduler{
		lookup:   hashtable.New[defs.Tid_t, *Task](64, idHash),
		gdtTable: gdtTable,
		quantum:  quantumTicks,
	}
}

// RegisterIdle installs the boot-time kernel context as task 0.
func (s *Scheduler) RegisterIdle(kernelAS *vmm.AddressSpace) *Task {
	t := &s.table[0]
	*t = Task{
		ID:           0,
		Name:         cstr.Str("idle"),
		State:        StateRunning,
		BasePriority: PriorityIdle,
		DynPriority:  PriorityIdle,
		QuantumTicks: ^uint64(0), // effectively infinite
		AddrSpace:    kernelAS,
	}
	s.lookup.Set(0, t)
	s.idle = t
	s.current.SetCurrent(t)
	return t
}

// allocID returns the next 32-bit task identifier, skipping 0 on wrap.
// 0 is reserved for the idle task (slot 0), never reassigned.
func (s *Scheduler) allocID() defs.Tid_t {
	s.nextID++
	if s.nextID == 0 {
		s.nextID = 1
	}
	return s.nextID
}

// reserveSlot finds a task table slot in state New or Terminated and
// returns it, or nil if the table is full. Slot 0 (idle) is never
// reserved.
func (s *Scheduler) reserveSlot() *Task {
	for i := 1; i < limits.MaxTasks; i++ {
		t := &s.table[i]
		if !t.InUse() {
			return t
		}
	}
	return nil
}

// CreateTask builds a new task from an ELF image and appends it to the
// ready queue.
func (s *Scheduler) CreateTask(name string, priority Priority, elfBuf []byte, argv, envp []string) (*Task, error) {
	s.lock.Lock()
	slot := s.reserveSlot()
	if slot == nil {
		s.lock.Unlock()
		return nil, errNoFreeSlot
	}
	id := s.allocID()
	slot.State = StateNew
	s.lock.Unlock()

	as, ok := vmm.NewAddressSpace()
	if !ok {
		s.notifyOOM(1)
		return nil, errOutOfFrames
	}

	stackBase, stackSize, rsp, err := buildStack(as, argv, envp)
	if err != nil {
		as.Delete()
		s.notifyOOM(1)
		return nil, err
	}

	img, err := elf.Validate(elfBuf)
	if err != nil {
		as.Delete()
		return nil, errBadELF
	}
	res, err := elf.Load(as, img, 0)
	if err != nil {
		as.Delete()
		s.notifyOOM(1)
		return nil, err
	}

	ctx := Context{
		RIP:    res.Entry,
		RFLAGS: 0x202,
		CS:     uint64(gdt.SelUCode),
		SS:     uint64(gdt.SelUData),
		RSP:    rsp,
		CR3:    uint64(as.PML4()),
	}

	s.lock.Lock()
	*slot = Task{
		ID:           id,
		Name:         cstr.FromNulTerminated([]byte(name)),
		State:        StateReady,
		BasePriority: priority,
		DynPriority:  priority,
		QuantumTicks: s.quantum,
		Context:      ctx,
		AddrSpace:    as,
		StackBase:    stackBase,
		StackSize:    stackSize,
		ImageBase:    uintptr(res.Base),
		ImageTop:     uintptr(res.Top),
	}
	s.lookup.Set(id, slot)
	s.ready.pushBack(slot)
	s.stats.Created.Inc()
	s.lock.Unlock()

	klog.Infof("sched: created task %d %q entry=%#x top=%#x", id, name, res.Entry, res.Top)
	return slot, nil
}

// notifyOOM logs the failure and offers it on oommsg.OomCh. The send does
// not block: when nothing is receiving, the notification is dropped. When
// a receiver takes it, notifyOOM waits for its reply on Resume.
func (s *Scheduler) notifyOOM(need int) {
	klog.Warnf("sched: task creation failed, need %d frame(s)", need)
	resume := make(chan bool)
	select {
	case oommsg.OomCh <- oommsg.Oommsg_t{Need: need, Resume: resume}:
		<-resume
	default:
	}
}

// CurrentTask returns the task presently Running.
func (s *Scheduler) CurrentTask() *Task {
	return s.current.Current()
}

// Lookup finds a task by id.
func (s *Scheduler) Lookup(id defs.Tid_t) (*Task, bool) {
	return s.lookup.Get(id)
}

// List returns every task currently occupying a slot.
func (s *Scheduler) List() []*Task {
	var out []*Task
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.table {
		if s.table[i].InUse() || i == 0 {
			out = append(out, &s.table[i])
		}
	}
	return out
}

// CounterSnapshot is a point-in-time, copy-safe read of the aggregate
// scheduler counters.
type CounterSnapshot struct {
	Created         int64
	Terminated      int64
	ContextSwitches int64
	Preemptions     int64
}

// DumpStats renders the live aggregate counters via reflection, without
// taking a copy of the underlying atomics.
func (s *Scheduler) DumpStats() string {
	return stats.Dump(&s.stats)
}

// GetStats returns a snapshot of the aggregate scheduler counters.
func (s *Scheduler) GetStats() CounterSnapshot {
	return CounterSnapshot{
		Created:         s.stats.Created.Value(),
		Terminated:      s.stats.Terminated.Value(),
		ContextSwitches: s.stats.ContextSwitches.Value(),
		Preemptions:     s.stats.Preemptions.Value(),
	}
}

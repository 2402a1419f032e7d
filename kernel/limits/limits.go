// Package limits collects the fixed resource bounds the scheduler and
// address-space manager are built around. Filesystem and network limits
// are out of scope, since talus has neither here.
package limits

// MaxTasks is the size of the fixed task table.
const MaxTasks = 256

// MaxArenas is the number of static virtual-arena slots available to
// vmm.Arenas.
const MaxArenas = 32

// DefaultQuantumTicks is the number of ticks a task runs before mandatory
// preemption absent an explicit per-task override.
const DefaultQuantumTicks = 10

// TickHz is the scheduler's configured tick rate.
const TickHz = 1000

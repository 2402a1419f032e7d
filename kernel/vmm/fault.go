package vmm

import "talus/kernel/klog"

// FaultError is the x86_64 page-fault error code bit layout.
type FaultError uint64

const (
	FaultPresent  FaultError = 1 << 0 // 0: no mapping, 1: protection violation
	FaultWrite    FaultError = 1 << 1
	FaultUser     FaultError = 1 << 2
	FaultReserved FaultError = 1 << 3
	FaultFetch    FaultError = 1 << 4
)

// Fault describes one decoded page fault: the faulting address (CR2) and
// the reason bits (the error code pushed by the CPU).
type Fault struct {
	Addr uintptr
	Code FaultError
}

func (c FaultError) String() string {
	switch {
	case c&FaultReserved != 0:
		return "reserved-bit violation"
	case c&FaultFetch != 0:
		return "instruction fetch"
	case c&FaultPresent == 0:
		return "not present"
	case c&FaultWrite != 0:
		return "write protection"
	default:
		return "read protection"
	}
}

// Decode builds a Fault from the raw values the CPU delivers: CR2 (the
// faulting linear address) and the error code on the exception stack
// frame.
func Decode(cr2 uintptr, errCode uint64) Fault {
	return Fault{Addr: cr2, Code: FaultError(errCode)}
}

// Handle logs a structured fault report and halts. talus does not
// implement demand paging, copy-on-write, or stack growth, so every
// page fault reaching the kernel is fatal.
func Handle(f Fault) {
	klog.Criticalf("page fault at %#x: %s (present=%v write=%v user=%v)",
		f.Addr, f.Code, f.Code&FaultPresent != 0, f.Code&FaultWrite != 0, f.Code&FaultUser != 0)
	halt()
}

var halt = func() {
	for {
		select {}
	}
}

// SetHaltHook overrides the action Handle takes after logging a fatal
// fault. Tests install a hook that records the call instead of looping
// forever.
func SetHaltHook(f func()) {
	halt = f
}

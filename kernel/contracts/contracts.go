// Package contracts names the shape of the kernel core's external
// collaborators: the filesystem, tick device, and syscall demultiplexer
// the core calls into or is called by, but does not itself implement.
// These are declared as small capability interfaces only, each
// satisfied by a concrete subsystem that lives outside this module.
package contracts

import "talus/kernel/defs"

// FileSystem is consumed by the ELF loader's file-backed entry point:
// open(path, flags) → fd; read(fd, buf, n) → bytes; close(fd).
type FileSystem interface {
	Open(path string, flags int) (fd int, err defs.Err_t)
	Read(fd int, buf []byte) (n int, err defs.Err_t)
	Close(fd int) defs.Err_t
}

// TickDevice is consumed by the tick source.
type TickDevice interface {
	Register(callback func(tick uint64))
	Ticks() uint64
	Sleep(ms uint64)
}

// SyscallDemux is the demultiplexer the core is called through: given
// (nr, a1…a6), it returns a signed long. The core's own exports
// to this collaborator — scheduler handle operations and address-space
// primitives — are the concrete methods on *sched.Scheduler and
// *vmm.AddressSpace/vmm.Arenas; this interface only names the demux's
// shape, since the demux itself lives outside this module.
type SyscallDemux interface {
	Syscall(nr uintptr, a1, a2, a3, a4, a5, a6 uintptr) int64
}

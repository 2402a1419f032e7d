package idt

import (
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// maxInstrBytes is the longest an x86_64 instruction encoding can be.
const maxInstrBytes = 15

// disassembleAt decodes the single instruction at virtual address rip,
// for inclusion in a fatal exception dump. It reads directly through rip as a pointer,
// which is safe only because Dispatch calls this while still running in
// the faulting task's own address space, before any context switch away
// from it.
func disassembleAt(rip uint64) (x86asm.Inst, bool) {
	if rip == 0 {
		return x86asm.Inst{}, false
	}
	var buf [maxInstrBytes]byte
	src := (*[maxInstrBytes]byte)(unsafe.Pointer(uintptr(rip)))
	copy(buf[:], src[:])

	inst, err := x86asm.Decode(buf[:], 64)
	if err != nil {
		return x86asm.Inst{}, false
	}
	return inst, true
}

// disassemblyString renders the faulting instruction in GNU syntax,
// falling back to a placeholder when decoding fails (e.g. the fault
// itself was an instruction-fetch fault on unmapped memory).
func disassemblyString(rip uint64) string {
	inst, ok := disassembleAt(rip)
	if !ok {
		return "<unavailable>"
	}
	return x86asm.GNUSyntax(inst, rip, nil)
}

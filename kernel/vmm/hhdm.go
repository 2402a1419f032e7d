package vmm

import (
	"unsafe"

	"talus/kernel/mem"
)

// hhdmOffset is the virtual offset H of the bootloader's higher-half
// direct map. SetHHDMOffset must be called once during boot with the
// value the boot protocol delivered before any translation happens.
var hhdmOffset uintptr

// SetHHDMOffset records H.
func SetHHDMOffset(h uintptr) { hhdmOffset = h }

// PhysToVirt returns the kernel-visible direct-map pointer for a physical
// address. It is defined only for addresses reachable via the HHDM — the
// caller is responsible for staying within the RAM the bootloader mapped.
func PhysToVirt(p uintptr) unsafe.Pointer {
	return unsafe.Pointer(hhdmOffset + p)
}

// VirtToPhysHHDM reverses PhysToVirt for a pointer known to lie in the HHDM
// window.
func VirtToPhysHHDM(v unsafe.Pointer) uintptr {
	return uintptr(v) - hhdmOffset
}

func frameTable(f mem.Frame) *table {
	return (*table)(PhysToVirt(uintptr(f)))
}

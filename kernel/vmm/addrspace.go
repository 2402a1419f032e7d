package vmm

import (
	"sync"

	"talus/kernel/klog"
	"talus/kernel/mem"
)

// AddressSpace is a handle on one 4-level page hierarchy. Lock protects
// concurrent map/unmap/translate calls against the same address space;
// talus is single-core, so this guards against interrupt-driven
// reentrancy (e.g. a page-fault handler racing an explicit unmap) rather
// than true multiprocessor contention.
type AddressSpace struct {
	sync.Mutex
	pml4      mem.Frame
	pml4Table *table
}

// kernelPML4 holds the upper-half entries every address space shares.
// It is populated once by InitKernel.
var kernelPML4 table

// InitKernel captures the boot-time PML4's upper half as the template every
// later address space is seeded from. It must run after the bootloader's
// own mappings (kernel image, HHDM) are in place and before the first
// NewAddressSpace call.
func InitKernel(bootPML4 mem.Frame) {
	src := frameTable(bootPML4)
	for i := 256; i < entriesPerTable; i++ {
		kernelPML4[i] = src[i]
	}
}

// NewAddressSpace allocates a new top-level table, copies the shared
// upper-half (kernel) entries into it, and leaves the lower half (user)
// empty.
func NewAddressSpace() (*AddressSpace, bool) {
	f, t, ok := allocTable()
	if !ok {
		klog.Warnf("vmm: out of frames creating address space")
		return nil, false
	}
	for i := 256; i < entriesPerTable; i++ {
		t[i] = kernelPML4[i]
	}
	return &AddressSpace{pml4: f, pml4Table: t}, true
}

// PML4 returns the physical address of the top-level table, the value CR3
// must be loaded with to activate this address space.
func (as *AddressSpace) PML4() mem.Frame { return as.pml4 }

// Delete walks only the lower half: for each non-large present entry at
// PML4/PDPT/PD it recursively frees the child table, then frees the
// PML4 frame itself. The upper half is never freed, since the frames it
// points to are shared with every other address space.
func (as *AddressSpace) Delete() {
	as.Lock()
	defer as.Unlock()
	for i := 0; i < 256; i++ {
		e := as.pml4Table[i]
		if !e.Present() {
			continue
		}
		freeSubtree(e.Frame(), 3)
	}
	mem.Global.Free(as.pml4)
	as.pml4Table = nil
}

// freeSubtree recursively frees an interior page-hierarchy node at the
// given level (3 = PDPT, 2 = PD, 1 = PT; level 0 entries are leaves and are
// never freed here — that is the caller's job, since leaf frames are the
// mapped data/text pages a caller may still want, e.g. during Unmap).
func freeSubtree(f mem.Frame, level int) {
	if level == 0 {
		return
	}
	t := frameTable(f)
	for i := 0; i < entriesPerTable; i++ {
		e := t[i]
		if !e.Present() || e.Large() {
			continue
		}
		freeSubtree(e.Frame(), level-1)
	}
	mem.Global.Free(f)
}

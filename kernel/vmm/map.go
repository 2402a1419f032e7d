package vmm

import (
	"talus/kernel/klog"
	"talus/kernel/mem"
)

// walk descends from the PML4 to the table at the given level that would
// hold va's leaf entry, allocating missing interior nodes when create is
// true. It returns the table and the index within it where the leaf
// entry for va lives, plus the level of that leaf: 2 if a 1 GiB PDPT
// leaf was found, 1 if a 2 MiB PD leaf was found, 0 for an ordinary
// 4 KiB PT leaf.
func (as *AddressSpace) walk(va uintptr, create bool) (*table, int, int, bool) {
	t := as.pml4Table
	idx := pml4Index(va)
	if !t[idx].Present() {
		if !create {
			return nil, 0, 0, false
		}
		f, _, ok := allocTable()
		if !ok {
			return nil, 0, 0, false
		}
		t[idx] = makePTE(f, Flags{Writable: true, User: true})
	}
	pdpt := frameTable(t[idx].Frame())

	idx = pdptIndex(va)
	if pdpt[idx].Present() && pdpt[idx].Large() {
		return pdpt, int(idx), 2, true
	}
	if !pdpt[idx].Present() {
		if !create {
			return nil, 0, 0, false
		}
		f, _, ok := allocTable()
		if !ok {
			return nil, 0, 0, false
		}
		pdpt[idx] = makePTE(f, Flags{Writable: true, User: true})
	}
	pd := frameTable(pdpt[idx].Frame())

	idx = pdIndex(va)
	if pd[idx].Present() && pd[idx].Large() {
		return pd, int(idx), 1, true
	}
	if !pd[idx].Present() {
		if !create {
			return nil, 0, 0, false
		}
		f, _, ok := allocTable()
		if !ok {
			return nil, 0, 0, false
		}
		pd[idx] = makePTE(f, Flags{Writable: true, User: true})
	}
	pt := frameTable(pd[idx].Frame())

	idx = ptIndex(va)
	return pt, int(idx), 0, true
}

// MapPage installs a single 4 KiB mapping of va to the given frame. va
// and the frame must already be page-aligned; mapping the zero virtual
// address is rejected, since a present entry at index 0 of the root
// table would make a null pointer dereference silently succeed.
func (as *AddressSpace) MapPage(va uintptr, f mem.Frame, flags Flags) bool {
	if va == 0 {
		klog.Warnf("vmm: refusing to map virtual address 0")
		return false
	}
	if !alignedTo(va, pageSize) {
		klog.Warnf("vmm: MapPage va %#x not page-aligned", va)
		return false
	}
	as.Lock()
	defer as.Unlock()
	t, idx, level, ok := as.walk(va, true)
	if !ok {
		return false
	}
	if level != 0 {
		klog.Warnf("vmm: MapPage va %#x already covered by a huge page", va)
		return false
	}
	if t[idx].Present() {
		klog.Warnf("vmm: MapPage va %#x already mapped", va)
		return false
	}
	t[idx] = makePTE(f, flags)
	return true
}

// MapHuge installs a 2 MiB mapping at the PD level directly, without
// descending to a PT. va and the frame must both be 2 MiB aligned.
func (as *AddressSpace) MapHuge(va uintptr, f mem.Frame, flags Flags) bool {
	if !alignedTo(va, mib2) || !alignedTo(uintptr(f), mib2) {
		klog.Warnf("vmm: MapHuge va %#x / frame %#x not 2 MiB aligned", va, uintptr(f))
		return false
	}
	as.Lock()
	defer as.Unlock()

	t := as.pml4Table
	idx := pml4Index(va)
	if !t[idx].Present() {
		nf, _, ok := allocTable()
		if !ok {
			return false
		}
		t[idx] = makePTE(nf, Flags{Writable: true, User: true})
	}
	pdpt := frameTable(t[idx].Frame())

	idx = pdptIndex(va)
	if pdpt[idx].Present() && pdpt[idx].Large() {
		klog.Warnf("vmm: MapHuge va %#x already covered by a 1 GiB page", va)
		return false
	}
	if !pdpt[idx].Present() {
		nf, _, ok := allocTable()
		if !ok {
			return false
		}
		pdpt[idx] = makePTE(nf, Flags{Writable: true, User: true})
	}
	pd := frameTable(pdpt[idx].Frame())

	idx = pdIndex(va)
	if pd[idx].Present() {
		klog.Warnf("vmm: MapHuge va %#x already mapped", va)
		return false
	}
	flags.LargePage = true
	pd[idx] = makePTE(f, flags)
	return true
}

// Unmap removes the mapping covering va, whatever its level, and returns
// the frame that was backing it. Unmapping an address that is not mapped
// is reported via ok=false and leaves the address space unchanged.
func (as *AddressSpace) Unmap(va uintptr) (mem.Frame, bool) {
	as.Lock()
	defer as.Unlock()
	t, idx, _, ok := as.walk(va, false)
	if !ok || !t[idx].Present() {
		return mem.InvalidFrame, false
	}
	f := t[idx].Frame()
	t[idx] = 0
	Invalidate(va)
	return f, true
}

// Translate resolves va to the physical frame backing it and the byte
// offset within that frame/page. ok is false when no mapping covers va.
func (as *AddressSpace) Translate(va uintptr) (phys uintptr, ok bool) {
	as.Lock()
	defer as.Unlock()
	t, idx, level, found := as.walk(va, false)
	if !found || !t[idx].Present() {
		return 0, false
	}
	e := t[idx]
	switch level {
	case 2:
		return uintptr(e.Frame()) | (va & (gib - 1)), true
	case 1:
		return uintptr(e.Frame()) | (va & (mib2 - 1)), true
	default:
		return uintptr(e.Frame()) | (va & (pageSize - 1)), true
	}
}

// IsMapped reports whether va is covered by a present mapping at any
// level.
func (as *AddressSpace) IsMapped(va uintptr) bool {
	_, ok := as.Translate(va)
	return ok
}

// MapPages maps count consecutive 4 KiB pages starting at va to count
// consecutive frames starting at f, using 2 MiB huge pages wherever both
// the remaining run and the current address are aligned to satisfy one,
// falling back to 4 KiB pages at the ends of the run. It stops and
// returns false, leaving any pages already mapped in place, on the
// first mapping failure.
func (as *AddressSpace) MapPages(va uintptr, f mem.Frame, count int, flags Flags) bool {
	remaining := count
	cva, cf := va, f
	for remaining > 0 {
		if alignedTo(cva, mib2) && alignedTo(uintptr(cf), mib2) && remaining >= int(mib2/pageSize) {
			if !as.MapHuge(cva, cf, flags) {
				return false
			}
			cva += mib2
			cf = mem.Frame(uintptr(cf) + mib2)
			remaining -= int(mib2 / pageSize)
			continue
		}
		if !as.MapPage(cva, cf, flags) {
			return false
		}
		cva += pageSize
		cf = mem.Frame(uintptr(cf) + pageSize)
		remaining--
	}
	return true
}

// UnmapPages unmaps count consecutive pages starting at va and frees the
// frames that backed them back to the global pool.
func (as *AddressSpace) UnmapPages(va uintptr, count int) {
	cva := va
	for i := 0; i < count; i++ {
		if f, ok := as.Unmap(cva); ok {
			mem.Global.Free(f)
		}
		cva += pageSize
	}
}

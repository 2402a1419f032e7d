package vmm

import (
	"talus/kernel/klog"
	"talus/kernel/mem"
)

// ArenaFlags selects which static arena a virtual allocation draws from.
// Kernel and user arenas are kept fully isolated rather than sharing a
// unified pool, since mmap-class and brk-class allocations should never
// alias each other's frames.
type ArenaFlags struct {
	User      bool
	Writable  bool
	NoExecute bool
}

type arena struct {
	base   uintptr
	length uintptr
	flags  ArenaFlags
	inUse  bool
}

const maxArenas = 32

// Arenas is the static pool every address space's virtual allocations
// draw from. It does not coalesce freed regions; each slot is either
// free or in-use in its entirety.
type Arenas struct {
	slots [maxArenas]arena
	n     int
}

// AddRegion registers one fixed {base, length, flags} region as
// available for future Allocate calls. Regions must not overlap; callers
// set these up once at boot before any task requests virtual memory.
func (a *Arenas) AddRegion(base, length uintptr, flags ArenaFlags) bool {
	if a.n >= maxArenas {
		klog.Errorf("vmm: arena pool full, cannot add region at %#x", base)
		return false
	}
	a.slots[a.n] = arena{base: base, length: length, flags: flags}
	a.n++
	return true
}

func pageRound(size uintptr) uintptr {
	return (size + pageSize - 1) &^ (pageSize - 1)
}

// Allocate picks the first unused arena whose flags match, backs it with
// freshly allocated, zero-filled frames, maps them into as, and returns
// the base address. size is rounded up to a page; a size of 0 or a
// request that does not fit any registered arena fails.
func (a *Arenas) Allocate(as *AddressSpace, size uintptr, flags ArenaFlags) (uintptr, bool) {
	if size == 0 {
		return 0, false
	}
	rounded := pageRound(size)
	for i := range a.slots[:a.n] {
		s := &a.slots[i]
		if s.inUse || s.flags != flags || s.length < rounded {
			continue
		}
		count := int(rounded / pageSize)
		mapFlags := Flags{Writable: flags.Writable, User: flags.User, NoExecute: flags.NoExecute}
		mapped := 0
		va := s.base
		ok := true
		for mapped < count {
			f := mem.Global.Alloc()
			if !f.IsValid() {
				ok = false
				break
			}
			zeroFrame(f)
			if !as.MapPage(va, f, mapFlags) {
				mem.Global.Free(f)
				ok = false
				break
			}
			va += pageSize
			mapped++
		}
		if !ok {
			as.UnmapPages(s.base, mapped)
			klog.Warnf("vmm: arena allocate of %d bytes failed, frames exhausted", size)
			return 0, false
		}
		s.inUse = true
		s.length = rounded
		return s.base, true
	}
	klog.Warnf("vmm: no free arena matches flags %+v for %d bytes", flags, size)
	return 0, false
}

// Free unmaps and frees every page backing the arena based at base and
// returns the arena to the pool. Freeing a base that is not a currently
// allocated arena is a no-op.
func (a *Arenas) Free(as *AddressSpace, base uintptr) {
	for i := range a.slots[:a.n] {
		s := &a.slots[i]
		if !s.inUse || s.base != base {
			continue
		}
		as.UnmapPages(s.base, int(s.length/pageSize))
		s.inUse = false
		return
	}
}

func zeroFrame(f mem.Frame) {
	t := (*[mem.PageSize]byte)(PhysToVirt(uintptr(f)))
	for i := range t {
		t[i] = 0
	}
}

// directMapLimit is the physical address below which MapPhysical takes
// the HHDM shortcut.
const directMapLimit = uintptr(4) << 30

// MapPhysical returns a kernel-visible pointer usable to access size
// bytes of physical memory starting at phys, for device register windows
// and other MMIO. For phys < 4 GiB it returns the HHDM pointer directly,
// regardless of the flags requested — matching the documented behavior
// this contract was distilled from; callers that need a non-cacheable or
// otherwise custom mapping for low physical memory must call MapPages
// explicitly instead. For phys ≥ 4 GiB it establishes a fresh mapping in
// the MMIO arena with the requested flags.
func (a *Arenas) MapPhysical(as *AddressSpace, phys uintptr, size uintptr, flags ArenaFlags) (uintptr, bool) {
	if phys < directMapLimit {
		return uintptr(PhysToVirt(phys)), true
	}
	rounded := pageRound(size + (phys & (pageSize - 1)))
	alignedPhys := phys &^ (pageSize - 1)
	for i := range a.slots[:a.n] {
		s := &a.slots[i]
		if s.inUse || s.flags != flags || s.length < rounded {
			continue
		}
		mapFlags := Flags{Writable: flags.Writable, User: flags.User, NoExecute: flags.NoExecute, CacheDis: true}
		count := int(rounded / pageSize)
		va := s.base
		cphys := alignedPhys
		for j := 0; j < count; j++ {
			if !as.MapPage(va, mem.Frame(cphys), mapFlags) {
				as.UnmapPages(s.base, j)
				return 0, false
			}
			va += pageSize
			cphys += pageSize
		}
		s.inUse = true
		s.length = rounded
		return s.base + (phys & (pageSize - 1)), true
	}
	return 0, false
}

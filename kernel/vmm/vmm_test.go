package vmm

import (
	"testing"
	"unsafe"

	"talus/kernel/mem"
)

// setupRAM simulates physical RAM for tests with a real Go byte slice:
// the HHDM offset is the slice's address, so PhysToVirt(p) == &buf[p].
func setupRAM(t *testing.T, bytes int) {
	t.Helper()
	buf := make([]byte, bytes)
	SetHHDMOffset(uintptr(unsafe.Pointer(&buf[0])))
	mem.Init([]mem.MemoryMapEntry{
		{Base: 0, Length: uintptr(bytes), Type: mem.RegionUsable},
	})
}

func newTestSpace(t *testing.T) *AddressSpace {
	t.Helper()
	setupRAM(t, 64*1024*1024)
	InitKernel(mustAllocTable(t))
	as, ok := NewAddressSpace()
	if !ok {
		t.Fatalf("NewAddressSpace failed")
	}
	return as
}

func mustAllocTable(t *testing.T) mem.Frame {
	t.Helper()
	f, _, ok := allocTable()
	if !ok {
		t.Fatalf("allocTable failed")
	}
	return f
}

func TestMapTranslateUnmapRoundTrip(t *testing.T) {
	as := newTestSpace(t)
	f := mem.Global.Alloc()
	if !f.IsValid() {
		t.Fatalf("Alloc failed")
	}
	const va = uintptr(0x40000000)
	if !as.MapPage(va, f, Flags{Writable: true}) {
		t.Fatalf("MapPage failed")
	}
	phys, ok := as.Translate(va)
	if !ok || phys != uintptr(f) {
		t.Fatalf("Translate = %#x, %v; want %#x, true", phys, ok, uintptr(f))
	}
	if _, ok := as.Unmap(va); !ok {
		t.Fatalf("Unmap failed")
	}
	if as.IsMapped(va) {
		t.Fatalf("page still mapped after Unmap")
	}
}

func TestMapPageRejectsNullAddress(t *testing.T) {
	as := newTestSpace(t)
	f := mem.Global.Alloc()
	if as.MapPage(0, f, Flags{}) {
		t.Fatalf("MapPage(0, ...) should be rejected")
	}
}

func TestMapPageRejectsUnaligned(t *testing.T) {
	as := newTestSpace(t)
	f := mem.Global.Alloc()
	if as.MapPage(0x1001, f, Flags{}) {
		t.Fatalf("MapPage on unaligned va should be rejected")
	}
}

func TestMapPageRejectsDoubleMap(t *testing.T) {
	as := newTestSpace(t)
	f1 := mem.Global.Alloc()
	f2 := mem.Global.Alloc()
	const va = uintptr(0x50000000)
	if !as.MapPage(va, f1, Flags{}) {
		t.Fatalf("first MapPage failed")
	}
	if as.MapPage(va, f2, Flags{}) {
		t.Fatalf("second MapPage at same va should fail")
	}
}

func TestHugePageConsumesOnePDEntryNoPT(t *testing.T) {
	as := newTestSpace(t)
	// Over-allocate so that a 2 MiB-aligned run of 512 frames lies inside.
	raw := mem.Global.AllocContig(2 * int(mib2/pageSize))
	if !raw.IsValid() {
		t.Fatalf("AllocContig for huge page failed")
	}
	f := mem.Frame((uintptr(raw) + mib2 - 1) &^ (mib2 - 1))
	const va = uintptr(0x60000000)
	if !as.MapPages(va, f, int(mib2/pageSize), Flags{Writable: true}) {
		t.Fatalf("MapPages (huge) failed")
	}

	t4 := as.pml4Table
	pdpt := frameTable(t4[pml4Index(va)].Frame())
	pd := frameTable(pdpt[pdptIndex(va)].Frame())
	e := pd[pdIndex(va)]
	if !e.Present() || !e.Large() {
		t.Fatalf("expected a present large PD entry, got present=%v large=%v", e.Present(), e.Large())
	}
	if e.Frame() != f {
		t.Fatalf("PD leaf frame = %#x, want %#x", uintptr(e.Frame()), uintptr(f))
	}

	phys, ok := as.Translate(va + 0x1234)
	if !ok || phys != uintptr(f)+0x1234 {
		t.Fatalf("Translate into huge page = %#x, %v; want %#x, true", phys, ok, uintptr(f)+0x1234)
	}
}

func TestNewDeleteAddressSpaceLeavesFrameCountersUnchanged(t *testing.T) {
	newTestSpace(t)
	before := mem.Global.Stats()
	as, ok := NewAddressSpace()
	if !ok {
		t.Fatalf("NewAddressSpace failed")
	}

	const va = uintptr(0x70000000)
	f := mem.Global.Alloc()
	if !as.MapPage(va, f, Flags{Writable: true}) {
		t.Fatalf("MapPage failed")
	}
	as.Unmap(va)
	mem.Global.Free(f)
	as.Delete()

	after := mem.Global.Stats()
	if after != before {
		t.Fatalf("frame counters leaked: before=%+v after=%+v", before, after)
	}
}

func TestMapPagesThenUnmapPagesRevertsMappedState(t *testing.T) {
	as := newTestSpace(t)
	const n = 16
	f := mem.Global.AllocContig(n)
	if !f.IsValid() {
		t.Fatalf("AllocContig failed")
	}
	const va = uintptr(0x80000000)
	if !as.MapPages(va, f, n, Flags{Writable: true}) {
		t.Fatalf("MapPages failed")
	}
	for i := 0; i < n; i++ {
		if !as.IsMapped(va + uintptr(i)*pageSize) {
			t.Fatalf("page %d should be mapped", i)
		}
	}
	as.UnmapPages(va, n)
	for i := 0; i < n; i++ {
		if as.IsMapped(va + uintptr(i)*pageSize) {
			t.Fatalf("page %d should be unmapped", i)
		}
	}
}

func TestTranslateUnmappedFails(t *testing.T) {
	as := newTestSpace(t)
	if _, ok := as.Translate(0x90000000); ok {
		t.Fatalf("Translate of an unmapped address should fail")
	}
}

func TestArenaAllocateReturnsZeroedPageAlignedRegion(t *testing.T) {
	as := newTestSpace(t)
	var arenas Arenas
	arenas.AddRegion(0xA0000000, 16*mib2, ArenaFlags{Writable: true})

	base, ok := arenas.Allocate(as, 100, ArenaFlags{Writable: true})
	if !ok {
		t.Fatalf("Allocate failed")
	}
	if base%pageSize != 0 {
		t.Fatalf("base %#x not page-aligned", base)
	}
	phys, ok := as.Translate(base)
	if !ok {
		t.Fatalf("allocated region not mapped")
	}
	buf := (*[pageSize]byte)(PhysToVirt(phys))
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, b)
		}
	}
}

func TestArenaFreeOfUnallocatedBaseIsNoOp(t *testing.T) {
	as := newTestSpace(t)
	var arenas Arenas
	arenas.AddRegion(0xB0000000, mib2, ArenaFlags{Writable: true})
	arenas.Free(as, 0xB0000000) // nothing allocated yet; must not panic
}

func TestMapPhysicalBelow4GiBReturnsDirectMapPointer(t *testing.T) {
	as := newTestSpace(t)
	var arenas Arenas
	p, ok := arenas.MapPhysical(as, 0x1000, pageSize, ArenaFlags{})
	if !ok {
		t.Fatalf("MapPhysical failed")
	}
	if p != uintptr(PhysToVirt(0x1000)) {
		t.Fatalf("MapPhysical below 4 GiB should return the HHDM pointer directly")
	}
}

func TestFaultErrorString(t *testing.T) {
	cases := []struct {
		code FaultError
		want string
	}{
		{0, "not present"},
		{FaultPresent, "read protection"},
		{FaultPresent | FaultWrite, "write protection"},
		{FaultFetch, "instruction fetch"},
		{FaultReserved, "reserved-bit violation"},
	}
	for _, c := range cases {
		if got := c.code.String(); got != c.want {
			t.Fatalf("FaultError(%d).String() = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestHandleLogsAndHalts(t *testing.T) {
	halted := false
	SetHaltHook(func() { halted = true })
	defer SetHaltHook(func() {})

	Handle(Decode(0xdeadbeef, uint64(FaultPresent|FaultWrite|FaultUser)))
	if !halted {
		t.Fatalf("Handle did not invoke the halt hook")
	}
}

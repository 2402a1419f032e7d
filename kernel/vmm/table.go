package vmm

import "talus/kernel/mem"

// table is one 4 KiB page-hierarchy node: 512 eight-byte entries.
type table [512]PTE

const entriesPerTable = 512

// pml4Index, pdptIndex, pdIndex, and ptIndex extract the 9-bit index for
// each level of the 4-level hierarchy from a canonical virtual address.
func pml4Index(va uintptr) uintptr { return (va >> 39) & 0x1ff }
func pdptIndex(va uintptr) uintptr { return (va >> 30) & 0x1ff }
func pdIndex(va uintptr) uintptr { return (va >> 21) & 0x1ff }
func ptIndex(va uintptr) uintptr { return (va >> 12) & 0x1ff }

const (
	gib      = uintptr(1) << 30
	mib2     = uintptr(2) << 20
	pageSize = uintptr(mem.PageSize)
)

func alignedTo(v uintptr, align uintptr) bool { return v%align == 0 }

// allocTable allocates and zeroes a fresh interior page-hierarchy node.
// Missing interior tables are allocated on first write and zeroed; the
// walkers that install them mark the entry present, writable and
// user-accessible, whether the address is in the lower or upper half.
func allocTable() (mem.Frame, *table, bool) {
	f := mem.Global.Alloc()
	if !f.IsValid() {
		return mem.InvalidFrame, nil, false
	}
	t := frameTable(f)
	*t = table{}
	return f, t, true
}

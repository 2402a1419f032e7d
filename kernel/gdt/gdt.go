// Package gdt builds the fixed global descriptor table and task-state
// segment that back ring 0/ring 3 transitions, component C
// of the execution substrate.
package gdt

import (
	"encoding/binary"
	"unsafe"

	"talus/kernel/klog"
)

// Segment selector indices. The layout is fixed: null, then the four
// code/data descriptors, then the 16-byte TSS descriptor occupying two
// slots.
const (
	SelNull  Selector = 0
	SelKCode Selector = 1 << 3
	SelKData Selector = 2 << 3
	SelUCode Selector = (3 << 3) | 3 // RPL 3
	SelUData Selector = (4 << 3) | 3
	SelTSS   Selector = 5 << 3

	numEntries = 7 // null, kcode, kdata, ucode, udata, tss-low, tss-high
)

func tssAddr(t *TSS) uintptr { return uintptr(unsafe.Pointer(t)) }

// Selector is a segment selector value as loaded into a segment register.
type Selector uint16

// descriptor is one 8-byte code/data/null descriptor.
type descriptor uint64

const (
	accPresent     = 1 << 47
	accNotSystem   = 1 << 44
	accExecutable  = 1 << 43
	accReadWrite   = 1 << 41
	accDPL3        = 3 << 45
	flagLongMode   = 1 << 53
	flagGranular4K = 1 << 55
	flagLimitHigh  = 0xF << 48
)

func codeDescriptor(dpl uint64) descriptor {
	return descriptor(accPresent | accNotSystem | accExecutable | accReadWrite |
		flagLongMode | flagGranular4K | flagLimitHigh | (dpl << 45))
}

func dataDescriptor(dpl uint64) descriptor {
	return descriptor(accPresent | accNotSystem | accReadWrite |
		flagGranular4K | flagLimitHigh | (dpl << 45))
}

// TSS is the 64-bit task-state structure. Only the fields talus uses are
// named; the rest of the 104-byte structure is reserved padding the CPU
// requires but never reads in the configuration talus runs (no I/O
// bitmap, no interrupt stack table entries beyond RSP0).
type TSS struct {
	_         uint32
	RSP0      uint64 // ring-0 stack pointer loaded on ring3->ring0 transitions
	RSP1      uint64
	RSP2      uint64
	_         uint64
	IST       [7]uint64
	_         uint64
	_         uint16
	IOMapBase uint16
}

// Table is the full descriptor table plus its embedded TSS and a backup
// copy used for corruption detection.
type Table struct {
	entries [numEntries]uint64
	tss     TSS
	backup  [numEntries]uint64
}

// New builds a Table with the fixed descriptor layout and the given
// ring-0 stack pointer installed in the TSS.
func New(ring0Stack uint64) *Table {
	t := &Table{}
	t.entries[0] = 0
	t.entries[1] = uint64(codeDescriptor(0))
	t.entries[2] = uint64(dataDescriptor(0))
	t.entries[3] = uint64(codeDescriptor(3))
	t.entries[4] = uint64(dataDescriptor(3))
	t.tss.RSP0 = ring0Stack
	t.tss.IOMapBase = uint16(binary.Size(TSS{}))
	t.fillTSSDescriptor()
	copy(t.backup[:], t.entries[:])
	return t
}

// fillTSSDescriptor encodes the 16-byte system descriptor that points at
// t.tss into entries[5:7].
func (t *Table) fillTSSDescriptor() {
	base := uint64(tssAddr(&t.tss))
	limit := uint64(binary.Size(TSS{}) - 1)

	low := (limit & 0xFFFF) |
		((base & 0xFFFFFF) << 16) |
		(uint64(0x89) << 40) | // present, type=0x9 (64-bit TSS available)
		(((limit >> 16) & 0xF) << 48) |
		(((base >> 24) & 0xFF) << 56)
	high := (base >> 32) & 0xFFFFFFFF

	t.entries[5] = low
	t.entries[6] = high
}

// SetRing0Stack updates the stack pointer loaded on the next ring3->ring0
// transition, e.g. when the scheduler switches to a new task's kernel
// stack.
func (t *Table) SetRing0Stack(rsp uint64) {
	t.tss.RSP0 = rsp
}

// Check performs a byte compare of the live descriptor entries against
// the backup taken at init, plus a sanity check that the TSS descriptor
// still points at this Table's own embedded TSS. It reports whether the
// table is intact.
func (t *Table) Check() bool {
	if t.entries != t.backup {
		klog.Errorf("gdt: descriptor table corrupted, entries differ from backup")
		return false
	}
	wantBase := uint64(tssAddr(&t.tss))
	gotBase := (t.entries[5]>>16)&0xFFFFFF | ((t.entries[5]>>56)&0xFF)<<24 | (t.entries[6]&0xFFFFFFFF)<<32
	if gotBase != wantBase {
		klog.Errorf("gdt: TSS descriptor base %#x does not match embedded TSS at %#x", gotBase, wantBase)
		return false
	}
	return true
}

// Recover restores the live entries from the backup taken at init,
// re-pointing the TSS descriptor at this Table's own TSS.
func (t *Table) Recover() {
	copy(t.entries[:], t.backup[:])
	t.fillTSSDescriptor()
	copy(t.backup[:], t.entries[:])
	klog.Warnf("gdt: recovered descriptor table from backup")
}

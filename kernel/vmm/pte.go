// Package vmm builds and tears down 4-level x86_64 page hierarchies, maps
// and unmaps pages (with 2 MiB huge-page promotion; existing 1 GiB pages
// are honored by walks but never created), translates virtual to physical
// addresses, and decodes page faults. It is component
// B of the execution substrate.
package vmm

import "talus/kernel/mem"

// PTE is a single 8-byte page-table entry. An entry with Present unset
// has no other meaningful bits; every setter in this file is written to
// preserve that.
type PTE uint64

const (
	flagPresent   PTE = 1 << 0
	flagWritable  PTE = 1 << 1
	flagUser      PTE = 1 << 2
	flagWriteThru PTE = 1 << 3
	flagCacheDis  PTE = 1 << 4
	flagAccessed  PTE = 1 << 5
	flagDirty     PTE = 1 << 6
	flagLarge     PTE = 1 << 7 // PS bit at PDPT/PD level
	flagGlobal    PTE = 1 << 8
	flagNX        PTE = 1 << 63

	addrMask PTE = 0x000F_FFFF_FFFF_F000 // bits 12..51, a 40-bit frame index
)

// Flags describes the policy bits of a mapping, independent of which
// physical frame backs it.
type Flags struct {
	Writable  bool
	User      bool
	WriteThru bool
	CacheDis  bool
	Global    bool
	NoExecute bool
	LargePage bool // internal use: set by the mapper when promoting
}

func (f Flags) encode() PTE {
	var p PTE
	if f.Writable {
		p |= flagWritable
	}
	if f.User {
		p |= flagUser
	}
	if f.WriteThru {
		p |= flagWriteThru
	}
	if f.CacheDis {
		p |= flagCacheDis
	}
	if f.Global {
		p |= flagGlobal
	}
	if f.LargePage {
		p |= flagLarge
	}
	if f.NoExecute && nxSupported {
		p |= flagNX
	}
	return p
}

// nxSupported records whether CPUID 0x80000001:EDX.20 was set at boot.
// When false, NX bits are silently dropped from every mapping rather
// than rejected.
var nxSupported = true

// SetNXSupported records the CPUID probe result; called once during boot
// before any mapping is created.
func SetNXSupported(supported bool) { nxSupported = supported }

// Present reports whether the entry is valid.
func (e PTE) Present() bool { return e&flagPresent != 0 }

// Writable reports the R/W bit.
func (e PTE) Writable() bool { return e&flagWritable != 0 }

// User reports the U/S bit.
func (e PTE) User() bool { return e&flagUser != 0 }

// Large reports the PS bit (valid only at PDPT/PD levels).
func (e PTE) Large() bool { return e&flagLarge != 0 }

// NoExecute reports the NX bit.
func (e PTE) NoExecute() bool { return e&flagNX != 0 }

// Frame extracts the 40-bit physical frame index encoded in the entry.
func (e PTE) Frame() mem.Frame { return mem.Frame(uintptr(e & addrMask)) }

func makePTE(f mem.Frame, flags Flags) PTE {
	return PTE(uintptr(f)) | flags.encode() | flagPresent
}

// Package elf validates an ELF64 image buffer and loads its LOAD
// segments into a target address space, component F of
// the execution substrate.
package elf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"talus/kernel/klog"
	"talus/kernel/mem"
	"talus/kernel/vmm"
)

// Image is a validated ELF64 executable or shared object, ready to load.
type Image struct {
	header elf.Header64
	progs  []elf.Prog64
	buf    []byte
}

// Validate parses buf as an ELF64 header and program-header table and
// rejects it unless every one of the following holds: magic bytes,
// 64-bit class, little-endian data, x86_64 machine, executable or
// shared-object type, canonical header-entry sizes, and in-bounds
// header tables.
func Validate(buf []byte) (*Image, error) {
	if len(buf) < binary.Size(elf.Header64{}) {
		return nil, fmt.Errorf("elf: buffer too small for a header")
	}
	if buf[0] != 0x7F || buf[1] != 'E' || buf[2] != 'L' || buf[3] != 'F' {
		return nil, fmt.Errorf("elf: bad magic")
	}
	if elf.Class(buf[elf.EI_CLASS]) != elf.ELFCLASS64 {
		return nil, fmt.Errorf("elf: not 64-bit")
	}
	if elf.Data(buf[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("elf: not little-endian")
	}

	var hdr elf.Header64
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("elf: short header: %w", err)
	}
	if elf.Machine(hdr.Machine) != elf.EM_X86_64 {
		return nil, fmt.Errorf("elf: not x86_64")
	}
	t := elf.Type(hdr.Type)
	if t != elf.ET_EXEC && t != elf.ET_DYN {
		return nil, fmt.Errorf("elf: type %v is neither executable nor shared-object", t)
	}
	const progEntSize = 56 // binary.Size(elf.Prog64{})
	const sectEntSize = 64 // binary.Size(elf.Section64{})
	if hdr.Phnum > 0 && int(hdr.Phentsize) != progEntSize {
		return nil, fmt.Errorf("elf: program header entry size %d != %d", hdr.Phentsize, progEntSize)
	}
	if hdr.Shnum > 0 && int(hdr.Shentsize) != sectEntSize {
		return nil, fmt.Errorf("elf: section header entry size %d != %d", hdr.Shentsize, sectEntSize)
	}

	phEnd := hdr.Phoff + uint64(hdr.Phnum)*uint64(hdr.Phentsize)
	if hdr.Phnum > 0 && phEnd > uint64(len(buf)) {
		return nil, fmt.Errorf("elf: program header table extends past buffer")
	}
	shEnd := hdr.Shoff + uint64(hdr.Shnum)*uint64(hdr.Shentsize)
	if hdr.Shnum > 0 && shEnd > uint64(len(buf)) {
		return nil, fmt.Errorf("elf: section header table extends past buffer")
	}

	progs := make([]elf.Prog64, hdr.Phnum)
	r := bytes.NewReader(buf[hdr.Phoff:phEnd])
	if err := binary.Read(r, binary.LittleEndian, &progs); err != nil {
		return nil, fmt.Errorf("elf: short program header table: %w", err)
	}

	return &Image{header: hdr, progs: progs, buf: buf}, nil
}

// IsSharedObject reports whether the image is position-independent
// (ET_DYN), meaning base is added to every virtual address.
func (img *Image) IsSharedObject() bool {
	return elf.Type(img.header.Type) == elf.ET_DYN
}

// Entry returns the effective entry point, adding base when the image is
// a shared object.
func (img *Image) Entry(base uint64) uint64 {
	if img.IsSharedObject() {
		return img.header.Entry + base
	}
	return img.header.Entry
}

// LoadResult reports the outcome of loading an image into an address
// space.
type LoadResult struct {
	Entry uint64
	Base  uint64 // lowest page-aligned vaddr across all LOAD segments
	Top   uint64 // highest vaddr+memsz across all LOAD segments
}

// Load maps every PT_LOAD segment into as at the given base. It
// allocates fresh frames for each segment, zero-fills them, copies the
// on-file bytes in, and maps them with flags derived from the segment's
// R/W/X bits. On any failure it unwinds the frames already mapped for
// this call before returning.
func Load(as *vmm.AddressSpace, img *Image, base uint64) (LoadResult, error) {
	var top uint64
	lowBase := ^uint64(0) // lowest page-aligned vaddr seen; sentinel means "no LOAD segment yet"
	var mapped []uintptr

	unwind := func() {
		for _, va := range mapped {
			if f, ok := as.Unmap(va); ok {
				mem.Global.Free(f)
			}
		}
	}

	for _, p := range img.progs {
		if elf.ProgType(p.Type) != elf.PT_LOAD {
			continue
		}
		vaddr := p.Vaddr
		if img.IsSharedObject() {
			vaddr += base
		}
		pageBase := vaddr &^ uint64(mem.PageSize-1)
		pageOff := vaddr - pageBase
		spanned := pageOff + p.Memsz
		npages := (spanned + uint64(mem.PageSize) - 1) / uint64(mem.PageSize)

		if p.Off+p.Filesz > uint64(len(img.buf)) {
			unwind()
			return LoadResult{}, fmt.Errorf("elf: segment file range exceeds buffer")
		}

		flags := vmm.Flags{
			Writable:  p.Flags&uint32(elf.PF_W) != 0,
			User:      true,
			NoExecute: p.Flags&uint32(elf.PF_X) == 0,
		}

		written := uint64(0)
		for i := uint64(0); i < npages; i++ {
			f := mem.Global.Alloc()
			if !f.IsValid() {
				unwind()
				return LoadResult{}, fmt.Errorf("elf: out of frames loading segment")
			}
			dst := (*[mem.PageSize]byte)(vmm.PhysToVirt(uintptr(f)))
			for j := range dst {
				dst[j] = 0
			}

			pageVA := uintptr(pageBase) + uintptr(i)*mem.PageSize
			copyStart := uint64(0)
			if i == 0 {
				copyStart = pageOff
			}
			copyEnd := uint64(mem.PageSize)
			if i == npages-1 {
				tailLimit := spanned - i*uint64(mem.PageSize)
				if tailLimit < copyEnd {
					copyEnd = tailLimit
				}
			}
			for off := copyStart; off < copyEnd && written < p.Filesz; off++ {
				fileIdx := p.Off + written
				dst[off] = img.buf[fileIdx]
				written++
			}

			if !as.MapPage(pageVA, f, flags) {
				mem.Global.Free(f)
				unwind()
				return LoadResult{}, fmt.Errorf("elf: failed to map segment page at %#x", pageVA)
			}
			mapped = append(mapped, pageVA)
		}

		if pageBase < lowBase {
			lowBase = pageBase
		}
		if vaddr+p.Memsz > top {
			top = vaddr + p.Memsz
		}
	}
	if lowBase == ^uint64(0) {
		lowBase = 0
	}

	klog.Infof("elf: loaded image, entry=%#x top=%#x", img.Entry(base), top)
	return LoadResult{Entry: img.Entry(base), Base: lowBase, Top: top}, nil
}

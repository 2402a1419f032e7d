package mem

import (
	"math/bits"

	"talus/kernel/klog"
)

// reservedFrames is the number of low frames (≤ 1 MiB) permanently shielded
// from allocation to protect legacy BIOS/real-mode memory.
const reservedFrames = 256

// word is one element of the allocation bitmap: 64 frames per word, bit i
// set means frame i is used.
type word = uint64

const bitsPerWord = 64

// Pool is a single contiguous physical frame pool backed by a bitmap, one
// bit per frame. It is the sole implementation of component A.
//
// Pool is deliberately not internally synchronized:
// callers serialize access, normally by holding the scheduler's task lock,
// or by allocating with interrupts disabled on the page-fault path.
type Pool struct {
	base Frame
	nframes uint64
	bitmap []word
	free uint64
}

// Global is the single system-wide frame pool, populated by Init.
var Global Pool

// Init selects the largest usable region above 1 MiB from the bootloader
// memory map, builds a bitmap over it, and marks used every pool frame
// that lies in the lowest reservedFrames physical frames or in an
// overlapping non-usable region. It is called
// exactly once during boot; bootstrap cannot proceed without a frame
// pool, so a memory map with no usable region above 1 MiB is a
// boot-fatal condition and Init panics.
func Init(memmap []MemoryMapEntry) {
	base, length := largestUsableAbove1MiB(memmap)
	if length == 0 {
		panic("mem: no usable region above 1 MiB in memory map")
	}

	p := &Global
	p.base = Frame(base)
	p.nframes = uint64(length) / PageSize
	p.bitmap = make([]word, (p.nframes+bitsPerWord-1)/bitsPerWord)
	p.free = p.nframes

	if lo, hi := overlapFrames(p, 0, reservedFrames*PageSize); hi > lo {
		markRange(p, lo, hi)
	}

	for _, e := range memmap {
		if e.Type == RegionUsable {
			continue
		}
		lo, hi := overlapFrames(p, e.Base, e.End())
		if hi > lo {
			markRange(p, lo, hi)
		}
	}

	klog.Infof("mem: pool base=%#x frames=%d free=%d", uintptr(p.base), p.nframes, p.free)
}

func largestUsableAbove1MiB(memmap []MemoryMapEntry) (uintptr, uintptr) {
	const oneMiB = 1 << 20
	var bestBase, bestLen uintptr
	for _, e := range memmap {
		if e.Type != RegionUsable {
			continue
		}
		base, end := e.Base, e.End()
		if base < oneMiB {
			base = oneMiB
		}
		if end <= base {
			continue
		}
		base = roundUp(base, PageSize)
		length := roundDown(end-base, PageSize)
		if length > bestLen {
			bestBase, bestLen = base, length
		}
	}
	return bestBase, bestLen
}

func overlapFrames(p *Pool, lo, hi uintptr) (uint64, uint64) {
	poolLo := uintptr(p.base)
	poolHi := poolLo + uintptr(p.nframes)*PageSize
	if hi <= poolLo || lo >= poolHi {
		return 0, 0
	}
	if lo < poolLo {
		lo = poolLo
	}
	if hi > poolHi {
		hi = poolHi
	}
	return uint64(roundDown(lo-poolLo, PageSize)) / PageSize,
	uint64(roundUp(hi-poolLo, PageSize)) / PageSize
}

func roundUp(v, align uintptr) uintptr { return roundDown(v+align-1, align) }
func roundDown(v, align uintptr) uintptr { return v - v%align }

func markRange(p *Pool, lo, hi uint64) {
	if hi > p.nframes {
		hi = p.nframes
	}
	for i := lo; i < hi; i++ {
		if !testBit(p.bitmap, i) {
			setBit(p.bitmap, i)
			p.free--
		}
	}
}

func testBit(bm []word, i uint64) bool {
	return bm[i/bitsPerWord]&(1<<(i%bitsPerWord)) != 0
}

func setBit(bm []word, i uint64) {
	bm[i/bitsPerWord] |= 1 << (i % bitsPerWord)
}

func clearBit(bm []word, i uint64) {
	bm[i/bitsPerWord] &^= 1 << (i % bitsPerWord)
}

// Alloc returns one free frame, or InvalidFrame if the pool is exhausted.
func (p *Pool) Alloc() Frame {
	idx, ok := p.firstFree(0)
	if !ok {
		klog.Warnf("mem: out of frames")
		return InvalidFrame
	}
	setBit(p.bitmap, idx)
	p.free--
	return p.indexToFrame(idx)
}

// AllocContig returns n contiguous free frames as a single Frame naming the
// first one, or InvalidFrame if no run of n free frames exists.
// AllocContig(0) always fails.
func (p *Pool) AllocContig(n int) Frame {
	if n <= 0 {
		return InvalidFrame
	}
	idx, ok := p.firstFreeRun(uint64(n))
	if !ok {
		klog.Warnf("mem: out of contiguous frames (n=%d)", n)
		return InvalidFrame
	}
	markRange(p, idx, idx+uint64(n))
	return p.indexToFrame(idx)
}

// firstFree scans for the first clear bit at or after start using
// word-at-a-time trailing-zero scanning, keeping the allocator O(total
// frames) with no best-fit search.
func (p *Pool) firstFree(start uint64) (uint64, bool) {
	wi := start / bitsPerWord
	for ; wi < uint64(len(p.bitmap)); wi++ {
		w := p.bitmap[wi]
		if w == ^word(0) {
			continue
		}
		bit := uint64(bits.TrailingZeros64(^w))
		idx := wi*bitsPerWord + bit
		if idx >= p.nframes {
			return 0, false
		}
		return idx, true
	}
	return 0, false
}

func (p *Pool) firstFreeRun(n uint64) (uint64, bool) {
	var runStart uint64
	var runLen uint64
	for i := uint64(0); i < p.nframes; i++ {
		if !testBit(p.bitmap, i) {
			if runLen == 0 {
				runStart = i
			}
			runLen++
			if runLen == n {
				return runStart, true
			}
		} else {
			runLen = 0
		}
	}
	return 0, false
}

func (p *Pool) indexToFrame(idx uint64) Frame {
	return Frame(uintptr(p.base) + uintptr(idx)*PageSize)
}

func (p *Pool) frameToIndex(f Frame) (uint64, bool) {
	addr := uintptr(f)
	if addr%PageSize != 0 {
		return 0, false
	}
	base := uintptr(p.base)
	if addr < base || addr >= base+uintptr(p.nframes)*PageSize {
		return 0, false
	}
	return uint64(addr-base) / PageSize, true
}

// Free releases one frame. Freeing an address that is not page-aligned,
// outside the managed interval, or already free is a logged no-op, never a
// fault.
func (p *Pool) Free(f Frame) {
	idx, ok := p.frameToIndex(f)
	if !ok {
		klog.Warnf("mem: free of out-of-range/unaligned frame %#x ignored", uintptr(f))
		return
	}
	if !testBit(p.bitmap, idx) {
		klog.Warnf("mem: double free of frame %#x ignored", uintptr(f))
		return
	}
	clearBit(p.bitmap, idx)
	p.free++
}

// FreeContig releases n contiguous frames starting at f.
func (p *Pool) FreeContig(f Frame, n int) {
	for i := 0; i < n; i++ {
		p.Free(Frame(uintptr(f) + uintptr(i)*PageSize))
	}
}

// IsFree reports whether the frame is currently free. Out-of-range
// addresses report false.
func (p *Pool) IsFree(f Frame) bool {
	idx, ok := p.frameToIndex(f)
	if !ok {
		return false
	}
	return !testBit(p.bitmap, idx)
}

// FreeBytes returns the number of bytes currently free.
func (p *Pool) FreeBytes() uint64 {
	return p.free * PageSize
}

// TotalBytes returns the total size of the managed interval in bytes.
func (p *Pool) TotalBytes() uint64 {
	return p.nframes * PageSize
}

package sched

import (
	"encoding/binary"

	"talus/kernel/mem"
	"talus/kernel/vmm"
)

const (
	// userStackTop is the fixed virtual base every task's stack grows
	// down from, near the 2 GiB mark.
	userStackTop   = uintptr(0x80000000)
	userStackPages = 16 // 64 KiB

	auxNull = 0 // AT_NULL terminator
)

// buildStack allocates and maps the task's user stack, including the
// unmapped guard page immediately below it, then writes the argc/argv/
// envp/auxv layout at the top and returns the initial RSP.
func buildStack(as *vmm.AddressSpace, argv, envp []string) (base, size uintptr, rsp uint64, err error) {
	size = uintptr(userStackPages) * mem.PageSize
	base = userStackTop - size

	var mapped []uintptr
	unwind := func() {
		for _, va := range mapped {
			if f, ok := as.Unmap(va); ok {
				mem.Global.Free(f)
			}
		}
	}

	for i := 0; i < userStackPages; i++ {
		f := mem.Global.Alloc()
		if !f.IsValid() {
			unwind()
			return 0, 0, 0, errOutOfFrames
		}
		va := base + uintptr(i)*mem.PageSize
		if !as.MapPage(va, f, vmm.Flags{Writable: true, User: true, NoExecute: true}) {
			mem.Global.Free(f)
			unwind()
			return 0, 0, 0, errMapFailed
		}
		mapped = append(mapped, va)
	}
	// Guard page at base-PageSize is intentionally left unmapped: any
	// access below the stack faults through the normal page-fault path.

	rsp, err = layoutInitialStack(as, base, size, argv, envp)
	if err != nil {
		unwind()
		return 0, 0, 0, err
	}
	return base, size, rsp, nil
}

// layoutInitialStack writes the string table, then a 16-byte-aligned
// argc/argv[]/NULL/envp[]/NULL/auxv[]/AT_NULL block at the very top of
// the stack, Linux-style, and returns the resulting RSP.
func layoutInitialStack(as *vmm.AddressSpace, base, size uintptr, argv, envp []string) (uint64, error) {
	top := base + size
	write := func(addr uintptr, b []byte) error {
		for i := 0; i < len(b); {
			va := addr + uintptr(i)
			phys, ok := as.Translate(va &^ (mem.PageSize - 1))
			if !ok {
				return errMapFailed
			}
			page := (*[mem.PageSize]byte)(vmm.PhysToVirt(phys))
			off := int(va % mem.PageSize)
			n := copy(page[off:], b[i:])
			i += n
		}
		return nil
	}

	// Place the argv/envp string bytes just below the top, tracking
	// each string's resulting address.
	cursor := top
	strAddrs := func(strs []string) ([]uint64, error) {
		addrs := make([]uint64, len(strs))
		for i, s := range strs {
			b := append([]byte(s), 0)
			cursor -= uintptr(len(b))
			if err := write(cursor, b); err != nil {
				return nil, err
			}
			addrs[i] = uint64(cursor)
		}
		return addrs, nil
	}

	envAddrs, err := strAddrs(envp)
	if err != nil {
		return 0, err
	}
	argAddrs, err := strAddrs(argv)
	if err != nil {
		return 0, err
	}

	// argc, argv[argc+1], envp[len(envp)+1], auxv[2] (AT_NULL only).
	n := 1 + (len(argv) + 1) + (len(envp) + 1) + 2
	cursor &^= 0xF // 16-byte align before the vector block
	cursor -= uintptr(n) * 8
	cursor &^= 0xF

	buf := make([]byte, n*8)
	w := 0
	putWord := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[w*8:], v)
		w++
	}
	putWord(uint64(len(argv)))
	for _, a := range argAddrs {
		putWord(a)
	}
	putWord(0)
	for _, e := range envAddrs {
		putWord(e)
	}
	putWord(0)
	putWord(auxNull)
	putWord(0)

	if err := write(cursor, buf); err != nil {
		return 0, err
	}
	return uint64(cursor), nil
}

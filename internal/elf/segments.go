package elf

import "github.com/vrcore/rtkernel/internal/kern"

// layout records where each PT_LOAD segment landed inside the slab,
// in program-header order.
type layout struct {
	slabOffset int
	segments   []programHeader
	placement  []int // placement[i] = slab-relative start of segments[i]
}

// planLayout sums memsz across every PT_LOAD segment, rounding each
// segment's memsz up to an 8-byte boundary, and records where each segment will
// start once the slab is allocated.
func planLayout(phdrs []programHeader) layout {
	var l layout
	total := 0
	for _, ph := range phdrs {
		if ph.typ != ptLoad {
			continue
		}
		l.segments = append(l.segments, ph)
		l.placement = append(l.placement, total)
		total += alignUp8(int(ph.memsz))
	}
	l.slabOffset = total
	return l
}

func alignUp8(n int) int {
	if r := n % 8; r != 0 {
		n += 8 - r
	}
	return n
}

// copyIn zeroes the slab (the allocator already returns zeroed memory,
// but this loader does not assume that of its caller) then copies each
// segment's filesz bytes from the raw file image at its slab-relative
// placement. The memsz tail beyond filesz is BSS and stays zero.
func copyIn(raw []byte, slab []byte, l layout) error {
	for i := range slab {
		slab[i] = 0
	}
	for i, ph := range l.segments {
		dst := l.placement[i]
		if int(ph.offset)+int(ph.filesz) > len(raw) {
			return kern.NewError("elf.copyIn", kern.BadArg, "segment file range past end of file")
		}
		if dst+int(ph.filesz) > len(slab) {
			return kern.NewError("elf.copyIn", kern.Invalid, "segment overruns slab")
		}
		copy(slab[dst:dst+int(ph.filesz)], raw[ph.offset:int(ph.offset)+int(ph.filesz)])
	}
	return nil
}

package elf

import (
	"encoding/binary"

	"github.com/vrcore/rtkernel/internal/kern"
)

// relocatable names the small closed set of sections whose bodies are
// runs of 32-bit absolute addresses needing a base-address fix-up:
// globals resolved through the GOT, and the constructor/destructor
// pointer arrays a C runtime would walk at process start and exit.
func relocatable(name string) bool {
	switch name {
	case secGOT, secPreinitArray, secInitArray, secFiniArray:
		return true
	default:
		return false
	}
}

// segmentFor finds the PT_LOAD segment (by original virtual address
// range) that a section's sh_addr falls within, and the slab-relative
// position that byte range now occupies after copyIn.
func segmentFor(l layout, addr uint32) (slabRelative int, ok bool) {
	for i, ph := range l.segments {
		if addr >= ph.vaddr && addr < ph.vaddr+ph.memsz {
			return l.placement[i] + int(addr-ph.vaddr), true
		}
	}
	return 0, false
}

// relocation is the outcome of the section-header walk: the loader
// needs the GOT's slab-relative base address to hand back to the
// process, and nothing else from the other three arrays once they are
// fixed up in place.
type relocation struct {
	gotBase int
	gotSeen bool
}

// relocateSections walks every section, rewrites the word-array
// sections in the closed relocatable set in place (slab_base + word),
// and records the GOT's slab-relative address.
func relocateSections(raw []byte, slab []byte, slabBase int, l layout, h header) (relocation, error) {
	sections, err := sectionHeaders(raw, h)
	if err != nil {
		return relocation{}, err
	}
	var rel relocation
	for _, sh := range sections {
		name, err := sectionName(raw, sections, h.shstrndx, sh)
		if err != nil {
			return relocation{}, err
		}
		if !relocatable(name) {
			continue
		}
		start, ok := segmentFor(l, sh.addr)
		if !ok {
			return relocation{}, kern.NewError("elf.relocateSections", kern.Invalid, "relocatable section outside any PT_LOAD segment")
		}
		end := start + int(sh.size)
		if end > len(slab) {
			return relocation{}, kern.NewError("elf.relocateSections", kern.Invalid, "relocatable section overruns slab")
		}
		for off := start; off+4 <= end; off += 4 {
			word := binary.LittleEndian.Uint32(slab[off : off+4])
			binary.LittleEndian.PutUint32(slab[off:off+4], uint32(slabBase)+word)
		}
		if name == secGOT {
			rel.gotBase = start
			rel.gotSeen = true
		}
	}
	return rel, nil
}

package elf

import "github.com/vrcore/rtkernel/internal/kheap"

// Image is a loaded ELF32 ARM position-independent executable: its
// code/data/bss slab, the slab-relative base of its global offset
// table, and its entry address with the Thumb bit set.
type Image struct {
	Slab    *kheap.Block
	GOTBase int
	Entry   int
}

// SymbolResolver looks up the runtime address of a symbol an image
// references but does not itself define. The dynamic symbol table and
// linker that would populate one are out of scope here; this is the
// seam a board bring-up layer fills in.
type SymbolResolver interface {
	Resolve(name string) (uint32, bool)
}

// LoadBytes validates raw as an ELF32 LE ARM object, allocates one
// slab from heap sized to fit every PT_LOAD segment, copies the
// segments in, and relocates .got/.preinit_array/.init_array/.fini_array
// in place against the slab's base address.
func LoadBytes(raw []byte, heap *kheap.Heap) (*Image, error) {
	h, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	phdrs, err := programHeaders(raw, h)
	if err != nil {
		return nil, err
	}
	l := planLayout(phdrs)

	slab, err := heap.Allocate(l.slabOffset)
	if err != nil {
		return nil, WrapHeapError(err)
	}
	if err := copyIn(raw, slab.Bytes, l); err != nil {
		heap.Free(slab)
		return nil, err
	}

	rel, err := relocateSections(raw, slab.Bytes, slab.Offset, l, h)
	if err != nil {
		heap.Free(slab)
		return nil, err
	}
	_ = rel.gotSeen // an image with no .got (no globals) is legal; GOTBase stays 0

	entry := (slab.Offset + int(h.entry)) | 1

	return &Image{
		Slab:    slab,
		GOTBase: rel.gotBase,
		Entry:   entry,
	}, nil
}

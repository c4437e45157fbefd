package elf

import "github.com/vrcore/rtkernel/internal/kern"

// WrapHeapError adapts a kheap allocation failure into the same
// structured error shape every other loader failure uses.
func WrapHeapError(err error) error {
	return kern.WrapError("elf.Load", kern.InsufficientHeap, err)
}

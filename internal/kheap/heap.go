// Package kheap implements the kernel's first-fit allocator over a single
// statically sized region, standing in for the fixed RAM arena a Cortex-M
// image would place the heap in. It is grounded on the teacher's sharded
// byte-arena backend (backend/mem.go), repurposed from a RAM-disk with
// range locking into an allocator with free-list bookkeeping.
package kheap

import (
	"errors"
	"sync"
)

// ErrInsufficientHeap is returned when no free block can satisfy a request.
var ErrInsufficientHeap = errors.New("kheap: insufficient heap")

// align is the allocator's metadata alignment, matching spec.md's
// "8-byte aligned" internal-metadata requirement.
const align = 8

func alignUp(n int) int {
	if r := n % align; r != 0 {
		n += align - r
	}
	return n
}

type freeBlock struct {
	offset int
	size   int
}

// Block is a live allocation: a byte run owned by exactly one caller.
type Block struct {
	Offset int
	Bytes  []byte
}

// Heap is a first-fit allocator over a single fixed-size backing array.
// All mutation is serialized by mu, standing in for the interrupt-disabled
// critical section the original allocator ran under.
type Heap struct {
	mu    sync.Mutex
	data  []byte
	free  []freeBlock // sorted by offset, no two entries adjacent (coalesced)
	used  int
	total int
}

// New creates a heap over a region of the given size in bytes.
func New(size int) *Heap {
	size = alignUp(size)
	return &Heap{
		data:  make([]byte, size),
		free:  []freeBlock{{offset: 0, size: size}},
		total: size,
	}
}

// Allocate reserves n bytes (rounded up to the alignment) and returns the
// backing slice plus its offset within the heap region. Fails with
// ErrInsufficientHeap if no free block is large enough.
func (h *Heap) Allocate(n int) (*Block, error) {
	if n <= 0 {
		n = align
	}
	n = alignUp(n)

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, fb := range h.free {
		if fb.size < n {
			continue
		}
		off := fb.offset
		if fb.size == n {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = freeBlock{offset: fb.offset + n, size: fb.size - n}
		}
		h.used += n
		for i := range h.data[off : off+n] {
			h.data[off+i] = 0
		}
		return &Block{Offset: off, Bytes: h.data[off : off+n : off+n]}, nil
	}
	return nil, ErrInsufficientHeap
}

// Free returns a previously allocated block to the free list, coalescing
// with adjacent free blocks.
func (h *Heap) Free(b *Block) {
	if b == nil {
		return
	}
	size := alignUp(len(b.Bytes))

	h.mu.Lock()
	defer h.mu.Unlock()

	h.used -= size

	insertAt := len(h.free)
	for i, fb := range h.free {
		if b.Offset < fb.offset {
			insertAt = i
			break
		}
	}
	h.free = append(h.free, freeBlock{})
	copy(h.free[insertAt+1:], h.free[insertAt:])
	h.free[insertAt] = freeBlock{offset: b.Offset, size: size}

	h.coalesce()
}

func (h *Heap) coalesce() {
	out := h.free[:0]
	for _, fb := range h.free {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.offset+last.size == fb.offset {
				last.size += fb.size
				continue
			}
		}
		out = append(out, fb)
	}
	h.free = out
}

// Monitor reports used/total byte counts, for the kernel's heap-usage metric.
func (h *Heap) Monitor() (used, total int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used, h.total
}

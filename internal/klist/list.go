// Package klist implements the kernel's intrusive doubly-linked list: the
// building block for the task list, per-object block lists, owned-mutex
// lists and message lists. Every cell carries a monotonically increasing
// insertion order so ties in priority-based sorts are broken deterministically.
package klist

import "errors"

// ErrSentinelRemove is returned by Remove when asked to remove the list's
// own sentinel head, which has no element and must never be unlinked.
var ErrSentinelRemove = errors.New("klist: cannot remove sentinel head")

// Cell is one node of the list. The zero Cell is not usable; cells are
// created by List.PushFront/PushBack.
type Cell[T any] struct {
	next, prev *Cell[T]
	order      int
	list       *List[T]
	Value      T
}

// Order returns this cell's current insertion-order index. After any
// sequence of add/remove, the live cells' orders form a dense permutation
// of 0..Len()-1.
func (c *Cell[T]) Order() int { return c.order }

// List is a sentinel-headed intrusive doubly-linked list.
type List[T any] struct {
	sentinel  Cell[T]
	size      int
	nextOrder int
}

// New returns an empty, ready-to-use list.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.Init()
	return l
}

// Init resets the list to empty. Useful for embedding List by value.
func (l *List[T]) Init() {
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
	l.sentinel.list = l
	l.size = 0
	l.nextOrder = 0
}

// Len returns the number of elements currently in the list.
func (l *List[T]) Len() int { return l.size }

// First returns the first cell, or nil if the list is empty.
func (l *List[T]) First() *Cell[T] {
	if l.size == 0 {
		return nil
	}
	return l.sentinel.next
}

// Last returns the last cell, or nil if the list is empty.
func (l *List[T]) Last() *Cell[T] {
	if l.size == 0 {
		return nil
	}
	return l.sentinel.prev
}

func (l *List[T]) insertAfter(at *Cell[T], v T) *Cell[T] {
	c := &Cell[T]{Value: v, list: l, order: l.nextOrder}
	l.nextOrder++
	c.prev = at
	c.next = at.next
	at.next.prev = c
	at.next = c
	l.size++
	return c
}

// PushFront adds v at the front of the list and returns its cell.
func (l *List[T]) PushFront(v T) *Cell[T] {
	return l.insertAfter(&l.sentinel, v)
}

// PushBack adds v at the back of the list and returns its cell.
func (l *List[T]) PushBack(v T) *Cell[T] {
	return l.insertAfter(l.sentinel.prev, v)
}

// Remove unlinks c from the list, decrementing the insertion-order index
// of every cell that came after it so the remaining orders stay a dense
// permutation of 0..Len()-1. Removing the sentinel itself is rejected —
// see spec Open Question: the original C list_remove reassigned pPrev
// for the sentinel without checking, corrupting the invariant.
func (l *List[T]) Remove(c *Cell[T]) error {
	if c == &l.sentinel {
		return ErrSentinelRemove
	}
	if c.list != l {
		return errors.New("klist: cell does not belong to this list")
	}
	c.prev.next = c.next
	c.next.prev = c.prev
	removedOrder := c.order
	for cur := l.sentinel.next; cur != &l.sentinel; cur = cur.next {
		if cur.order > removedOrder {
			cur.order--
		}
	}
	l.nextOrder--
	c.next = nil
	c.prev = nil
	c.list = nil
	l.size--
	return nil
}

// PopFront removes and returns the first element.
func (l *List[T]) PopFront() (T, bool) {
	var zero T
	c := l.First()
	if c == nil {
		return zero, false
	}
	v := c.Value
	_ = l.Remove(c)
	return v, true
}

// PopBack removes and returns the last element.
func (l *List[T]) PopBack() (T, bool) {
	var zero T
	c := l.Last()
	if c == nil {
		return zero, false
	}
	v := c.Value
	_ = l.Remove(c)
	return v, true
}

// Each calls fn for every cell in order from front to back. fn must not
// mutate the list.
func (l *List[T]) Each(fn func(*Cell[T])) {
	for cur := l.sentinel.next; cur != &l.sentinel; cur = cur.next {
		fn(cur)
	}
}

// Find returns the first cell whose element satisfies pred, or nil.
func (l *List[T]) Find(pred func(T) bool) *Cell[T] {
	for cur := l.sentinel.next; cur != &l.sentinel; cur = cur.next {
		if pred(cur.Value) {
			return cur
		}
	}
	return nil
}

// Clear empties the list without preserving any invariant about the
// removed cells (they're discarded wholesale, unlike Remove).
func (l *List[T]) Clear() {
	l.Init()
}

// SortByPriority performs a stable bubble sort in place, ordering cells by
// descending priorityOf(Value) and breaking ties by ascending insertion
// order. Sorting is O(n^2) but block lists are small and this runs only
// when the wait/wake engine walks a block list, never in a hot loop.
func (l *List[T]) SortByPriority(priorityOf func(T) int) {
	if l.size < 2 {
		return
	}
	for i := 0; i < l.size-1; i++ {
		swapped := false
		cur := l.sentinel.next
		for j := 0; j < l.size-1-i; j++ {
			next := cur.next
			if less(priorityOf(cur.Value), cur.order, priorityOf(next.Value), next.order) {
				l.swapAdjacent(cur, next)
				swapped = true
			} else {
				cur = cur.next
			}
		}
		if !swapped {
			break
		}
	}
}

// less reports whether the cell described by (priorityA, orderA) should
// sort after the cell described by (priorityB, orderB): it does when A has
// the lower effective priority, or an equal priority and the later
// insertion order.
func less(priorityA, orderA, priorityB, orderB int) bool {
	if priorityA != priorityB {
		return priorityA < priorityB
	}
	return orderA > orderB
}

// swapAdjacent exchanges the positions of two adjacent cells (a immediately
// before b) without touching their order fields — SortByPriority reorders
// the links only; insertion order stays attached to the original cell so
// Remove's decrement-on-removal invariant is unaffected by sorting.
func (l *List[T]) swapAdjacent(a, b *Cell[T]) {
	aPrev := a.prev
	bNext := b.next

	aPrev.next = b
	b.prev = aPrev

	b.next = a
	a.prev = b

	a.next = bNext
	bNext.prev = a
}

package buddy

import "unsafe"

// directory holds the head of the free list for every size class. Lists are
// kept in ascending address order.
type directory struct {
	heads [maxSupportedClass + 1]handle
}

func (d *directory) reset() {
	for i := range d.heads {
		d.heads[i] = nilHandle
	}
}

// header returns the block header at offset h. Indexing mem keeps a corrupt
// handle from reaching outside the arena.
func (a *Allocator) header(h handle) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(&a.mem[h]))
}

// insert adds the free block h to the list for class k, keeping the list
// sorted by address.
func (a *Allocator) insert(k uint8, h handle) {
	b := a.header(h)

	prev := nilHandle
	next := a.dir.heads[k]
	for next != nilHandle && next < h {
		prev = next
		next = a.header(next).succ
	}

	b.pred = prev
	b.succ = next

	if prev == nilHandle {
		a.dir.heads[k] = h
	} else {
		a.header(prev).succ = h
	}

	if next != nilHandle {
		a.header(next).pred = h
	}
}

// remove unlinks block h from the list for class k.
func (a *Allocator) remove(k uint8, h handle) {
	b := a.header(h)

	if b.pred == nilHandle {
		a.dir.heads[k] = b.succ
	} else {
		a.header(b.pred).succ = b.succ
	}

	if b.succ != nilHandle {
		a.header(b.succ).pred = b.pred
	}

	b.succ = nilHandle
	b.pred = nilHandle
}

// firstAvailable finds the smallest class at or above k with a free block and
// returns that class and the head of its list. ok is false if every list up
// to the top class is empty.
func (a *Allocator) firstAvailable(k uint8) (class uint8, h handle, ok bool) {
	for c := k; c <= a.maxClass; c++ {
		if head := a.dir.heads[c]; head != nilHandle {
			return c, head, true
		}
	}
	return 0, nilHandle, false
}

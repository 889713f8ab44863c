package buddy

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Malloc allocates at least size bytes in the arena and returns a pointer to
// the first byte. Unlike the typical behavior in Go, the memory returned by
// Malloc is not zeroed.
//
// The request is rounded up, together with the 16-byte block header, to the
// next power of two no smaller than 32 bytes. Malloc fails with
// ErrInvalidSize if size is zero or larger than Cap, with ErrOutOfMemory if
// no free block is large enough, and with an *ArenaInitError if the arena
// could not be acquired. The pointer is nil whenever the error is not.
func (a *Allocator) Malloc(size uintptr) (unsafe.Pointer, error) {
	if size == 0 || size > uintptr(a.Cap()) {
		a.stats.failures++
		return nil, errors.Wrapf(ErrInvalidSize, "malloc %d bytes (max %d)", size, a.Cap())
	}

	if err := a.Init(); err != nil {
		a.stats.failures++
		return nil, err
	}

	target := classFor(size + uintptr(headerSize))

	c, h, ok := a.firstAvailable(target)
	if !ok {
		a.stats.failures++
		a.log.Debug("buddy: out of memory", "size", size, "class", target)
		return nil, errors.Wrapf(ErrOutOfMemory, "malloc %d bytes", size)
	}
	a.remove(c, h)

	// Split the block in half until it is the target size. The first half
	// is kept and the second half goes onto the free list one class down.
	b := a.header(h)
	for c > target {
		c--
		b.class = c

		second := buddyOf(h, c)
		a.header(second).reset(c)
		a.insert(c, second)

		a.stats.splits++
	}

	b.class = target
	b.free = false
	b.magic = headerMagic

	a.stats.allocs++
	a.stats.live++
	a.stats.inUse += blockSize(target)

	return a.payload(h), nil
}

// Free returns the block holding p to the arena, merging it with its buddy
// for as long as the buddy is free and the same size. The memory should not
// be used after calling Free.
//
// Free does nothing if p is nil. It panics if p is not a pointer returned by
// Malloc, Calloc or Realloc on this allocator, or if the block is already
// free.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	h := a.handleOf(p)
	b := a.header(h)
	if b.free {
		panic("buddy: double-free detected: attempted to free already free block")
	}

	k := b.class
	if a.poison {
		buf := a.bytes(h)
		for i := range buf {
			buf[i] = poisonByte
		}
	}

	a.stats.frees++
	a.stats.live--
	a.stats.inUse -= blockSize(k)

	for k < a.maxClass {
		other := buddyOf(h, k)
		ob := a.header(other)
		if !ob.free || ob.class != k {
			break
		}

		a.remove(k, other)

		// The higher header is now inside the merged block.
		if other < h {
			h, other = other, h
		}
		a.header(other).magic = 0

		k++
		a.stats.merges++
	}

	b = a.header(h)
	b.class = k
	b.free = true
	b.magic = headerMagic
	a.insert(k, h)
}

package buddy

import (
	"math/bits"
	"unsafe"

	"github.com/pkg/errors"
)

// Calloc allocates room for n elements of size bytes each and zeroes it.
//
// It fails with ErrOverflow (which is also an ErrInvalidSize) if n*size does
// not fit in a uintptr, and otherwise the same way as Malloc.
func (a *Allocator) Calloc(n, size uintptr) (unsafe.Pointer, error) {
	hi, total := bits.Mul(uint(n), uint(size))
	if hi != 0 {
		a.stats.failures++
		return nil, errors.Wrapf(ErrOverflow, "calloc %d x %d bytes", n, size)
	}

	p, err := a.Malloc(uintptr(total))
	if err != nil {
		return nil, err
	}

	clear(unsafe.Slice((*byte)(p), total))
	return p, nil
}

// Realloc moves the data at p into a new block of at least size bytes and
// frees the old block. The first min(size, UsableSize(p)) bytes are copied.
// If p is nil Realloc behaves like Malloc.
//
// Realloc always moves the data, even when the new size would fit in the
// current block. If the new block cannot be allocated the error is returned
// and p is left untouched and still valid.
func (a *Allocator) Realloc(p unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	if p == nil {
		return a.Malloc(size)
	}

	old := a.UsableSize(p)

	np, err := a.Malloc(size)
	if err != nil {
		return nil, err
	}

	n := min(size, old)
	copy(unsafe.Slice((*byte)(np), n), unsafe.Slice((*byte)(p), n))

	a.Free(p)
	return np, nil
}

// UsableSize returns the number of bytes that may be used at p, which is at
// least the size originally requested. p must be a live pointer returned by
// this allocator.
func (a *Allocator) UsableSize(p unsafe.Pointer) uintptr {
	b := a.header(a.handleOf(p))
	if b.free {
		panic("buddy: use of freed block")
	}
	return blockSize(b.class) - uintptr(headerSize)
}

package buddy

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Malloc allocates a zeroed value of an arbitrary type in the arena.
//
// Zero-size types take no arena space: Malloc returns a pointer from new(T),
// which Free accepts.
func Malloc[T any](a *Allocator) (*T, error) {
	if sizeof[T]() == 0 {
		return new(T), nil
	}

	p, err := a.Calloc(1, sizeof[T]())
	if err != nil {
		return nil, err
	}
	return (*T)(p), nil
}

// MallocSlice returns a new zeroed slice of the requested type, length and
// capacity. The slice's data will reside in the arena, but the slice header
// is a standard heap-allocated Go slice.
//
//	// Get a []int, len=10, cap=10:
//	intSlice, err := MallocSlice[int](a, 10)
//
//	// Get a []uint8, len=1, cap=100:
//	uint8Slice, err := MallocSlice[uint8](a, 1, 100)
//
// The builtin append function can be used with the slice, however if the
// slice is grown beyond the allocated array it will convert to a standard Go
// slice and the memory will not be freed from the arena. Use ResizeSlice to
// grow it inside the arena instead.
//
// Slices with no capacity, or of a zero-size type, are ordinary Go slices
// that never touch the arena. FreeSlice accepts them.
//
// It panics if length or capacity is less than 0, if length is greater than
// capacity, or if more than one value is given for capacity.
func MallocSlice[T any, N constraints.Integer](a *Allocator, length N, capacity ...N) ([]T, error) {
	c := sliceCap(length, capacity)
	if c == 0 {
		return []T{}, nil
	}
	if sizeof[T]() == 0 {
		return make([]T, length, c), nil
	}

	p, err := a.Calloc(c, sizeof[T]())
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*T)(p), c)[:length], nil
}

// ResizeSlice moves the data of a slice from MallocSlice into a block sized
// for the new capacity and returns a slice with the new length. Elements past
// the old length are zeroed. The original slice must not be used afterwards,
// unless an error is returned, in which case it is untouched.
//
// A slice with no capacity is allocated from scratch.
func ResizeSlice[T any, N constraints.Integer](a *Allocator, s []T, length N, capacity ...N) ([]T, error) {
	c := sliceCap(length, capacity)
	if cap(s) == 0 || sizeof[T]() == 0 {
		return MallocSlice[T](a, length, N(c))
	}
	if c == 0 {
		FreeSlice(a, s)
		return []T{}, nil
	}

	if c > ^uintptr(0)/sizeof[T]() {
		return nil, ErrOverflow
	}

	p, err := a.Realloc(unsafe.Pointer(unsafe.SliceData(s)), c*sizeof[T]())
	if err != nil {
		return nil, err
	}

	out := unsafe.Slice((*T)(p), c)
	if kept := uintptr(len(s)); kept < c {
		clear(out[kept:])
	}
	return out[:length], nil
}

// Free deallocates the memory associated with a pointer that was previously
// allocated in the arena.
//
// Free will panic if the pointer was not allocated within the arena.
//
// The object should not be used after calling Free.
func Free[T any](a *Allocator, p *T) {
	if p == nil || sizeof[T]() == 0 {
		return
	}

	a.Free(unsafe.Pointer(p))
}

// FreeSlice deallocates the data in a slice allocated with MallocSlice. This
// will panic if the slice data is not in the arena.
//
// The slice should not be used after calling FreeSlice.
func FreeSlice[T any](a *Allocator, s []T) {
	if cap(s) == 0 || sizeof[T]() == 0 {
		return
	}

	a.Free(unsafe.Pointer(unsafe.SliceData(s)))
}

func sliceCap[N constraints.Integer](length N, capacity []N) uintptr {
	if length < 0 {
		panic("buddy: invalid argument: length < 0")
	}

	var c uintptr
	switch len(capacity) {
	case 0:
		c = uintptr(length)
	case 1:
		if capacity[0] < 0 {
			panic("buddy: invalid argument: capacity < 0")
		}
		c = uintptr(capacity[0])
	default:
		panic("buddy: multiple values provided for capacity")
	}

	if uintptr(length) > c {
		panic("buddy: invalid arguments: length > capacity")
	}
	return c
}

func sizeof[T any]() uintptr {
	return unsafe.Sizeof(*(*T)(nil))
}

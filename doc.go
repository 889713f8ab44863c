// Package buddy implements a binary buddy allocator over a single fixed-size
// arena.
//
// The arena is 2^MaxClass bytes and is split into power-of-two blocks, each
// starting with a 16-byte header. Free blocks of each size sit on a per-class
// free list. Malloc takes the smallest free block that fits, splitting larger
// blocks in half as needed; Free merges a block with its buddy (the other
// half of the block it was split from) for as long as the buddy is also free.
//
//	a := buddy.New(buddy.Options{MaxClass: 20}) // 1 MiB arena
//	defer a.Close()
//
//	p, err := a.Malloc(100)
//	if err != nil {
//		return err
//	}
//	defer a.Free(p)
//
// Typed helpers wrap the raw interface:
//
//	v, err := buddy.Malloc[MyStruct](a)
//	s, err := buddy.MallocSlice[int](a, 0, 64)
//
// The arena memory is outside the Go garbage collector's view when it comes
// from the operating system (the default), so pointers to Go heap objects
// must not be stored in it.
package buddy

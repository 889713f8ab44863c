package buddy

import (
	"github.com/pkg/errors"
)

type counters struct {
	allocs   uint64
	frees    uint64
	splits   uint64
	merges   uint64
	failures uint64

	live  int
	inUse uintptr
}

// Stats is a snapshot of the allocator state.
type Stats struct {
	Size      int // Arena size in bytes
	FreeBytes int // Bytes in free blocks, headers included
	InUse     int // Bytes in allocated blocks, headers included
	Live      int // Number of allocated blocks

	// FreeBlocks is the number of free blocks of each class, indexed by
	// class. It has MaxClass+1 entries.
	FreeBlocks []int

	Allocs   uint64 // Successful allocations
	Frees    uint64 // Blocks freed
	Splits   uint64 // Blocks split in two by Malloc
	Merges   uint64 // Buddy pairs merged by Free
	Failures uint64 // Requests that returned an error
}

// Stats returns a snapshot of the allocator state. It walks every free list.
func (a *Allocator) Stats() Stats {
	s := Stats{
		Size:       a.Size(),
		InUse:      int(a.stats.inUse),
		Live:       a.stats.live,
		FreeBlocks: make([]int, a.maxClass+1),
		Allocs:     a.stats.allocs,
		Frees:      a.stats.frees,
		Splits:     a.stats.splits,
		Merges:     a.stats.merges,
		Failures:   a.stats.failures,
	}

	if a.mem == nil {
		if !a.closed && a.initErr == nil {
			// Not acquired yet, but it will start out entirely free.
			s.FreeBytes = s.Size
			s.FreeBlocks[a.maxClass] = 1
		}
		return s
	}

	for k := range s.FreeBlocks {
		for h := a.dir.heads[k]; h != nilHandle; h = a.header(h).succ {
			s.FreeBlocks[k]++
			s.FreeBytes += int(blockSize(uint8(k)))
		}
	}
	return s
}

// FreeBytes returns the amount of unallocated space in the arena, including
// the headers of free blocks.
//
// This requires walking the free lists, so it can be slow.
func (a *Allocator) FreeBytes() int {
	return a.Stats().FreeBytes
}

// Check walks every block in the arena and every free list and returns an
// error describing the first inconsistency found. It returns nil for an
// arena that has not been acquired.
//
// Check is meant for tests and debugging; it takes time proportional to the
// number of blocks.
func (a *Allocator) Check() error {
	if a.mem == nil {
		return nil
	}

	// Walk the arena block by block. Blocks tile it exactly.
	free := make(map[handle]bool)
	var inUse uintptr
	live := 0
	for off := uintptr(0); off < uintptr(len(a.mem)); {
		h := handle(off)
		b := a.header(h)
		switch {
		case b.magic != headerMagic:
			return errors.Errorf("block at %#x: bad magic %#x", off, b.magic)
		case b.class < minClass || b.class > a.maxClass:
			return errors.Errorf("block at %#x: class %d out of range", off, b.class)
		case off%blockSize(b.class) != 0:
			return errors.Errorf("block at %#x: not aligned to class %d", off, b.class)
		case off+blockSize(b.class) > uintptr(len(a.mem)):
			return errors.Errorf("block at %#x: class %d runs past the arena", off, b.class)
		}

		if b.free {
			free[h] = false
			if b.class < a.maxClass {
				ob := a.header(buddyOf(h, b.class))
				if ob.magic == headerMagic && ob.free && ob.class == b.class {
					return errors.Errorf("block at %#x: free buddy of class %d was not merged", off, b.class)
				}
			}
		} else {
			live++
			inUse += blockSize(b.class)
		}
		off += blockSize(b.class)
	}

	for k := 0; k <= int(a.maxClass); k++ {
		prev := nilHandle
		for h := a.dir.heads[k]; h != nilHandle; h = a.header(h).succ {
			if uintptr(h) >= uintptr(len(a.mem)) {
				return errors.Errorf("class %d list: handle %#x outside arena", k, h)
			}
			seen, ok := free[h]
			switch {
			case !ok:
				return errors.Errorf("class %d list: %#x is not a free block", k, h)
			case seen:
				return errors.Errorf("class %d list: %#x listed twice", k, h)
			}
			free[h] = true

			b := a.header(h)
			switch {
			case int(b.class) != k:
				return errors.Errorf("class %d list: %#x has class %d", k, h, b.class)
			case b.pred != prev:
				return errors.Errorf("class %d list: %#x has pred %#x, want %#x", k, h, b.pred, prev)
			case prev != nilHandle && prev >= h:
				return errors.Errorf("class %d list: %#x follows %#x", k, h, prev)
			}
			prev = h
		}
	}

	for h, seen := range free {
		if !seen {
			return errors.Errorf("free block at %#x is not on its list", h)
		}
	}

	if live != a.stats.live || inUse != a.stats.inUse {
		return errors.Errorf("%d blocks (%d bytes) allocated, counters say %d (%d bytes)", live, inUse, a.stats.live, a.stats.inUse)
	}
	return nil
}

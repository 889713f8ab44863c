package buddy

import (
	"math/bits"
	"unsafe"
)

const (
	// HeaderSize is the number of bytes in front of every payload.
	HeaderSize = headerSize

	// MinClass is the class of the smallest block, 32 bytes.
	MinClass = minClass
)

const (
	headerSize = int(unsafe.Sizeof(blockHeader{}))

	// minClass is the smallest block class that can hold a header and at
	// least one byte of payload.
	minClass = 5

	// maxSupportedClass is limited by the 32-bit handles in the header, or by
	// the address space on 32-bit platforms.
	maxSupportedClass = min(32, bits.UintSize-2)

	// headerMagic marks a header that starts a live block.
	headerMagic uint32 = 0xB0DDFEED

	// poisonByte fills freed payloads when Options.Poison is set.
	poisonByte = 0xDD
)

// handle is the offset of a block from the start of the arena.
type handle uint32

// nilHandle terminates free lists. Blocks are at least 32-byte aligned, so it
// never collides with a real offset.
const nilHandle handle = ^handle(0)

// blockHeader is stored at the first byte of every block.
type blockHeader struct {
	// succ and pred link free blocks of the same class. They are only
	// meaningful while free is set.
	succ handle
	pred handle

	magic uint32

	// class is the log2 of the block size. The header counts toward the
	// size.
	class uint8
	free  bool

	_ [2]byte
}

// reset makes h the header of a free, unlinked block of class k.
func (h *blockHeader) reset(k uint8) {
	h.succ = nilHandle
	h.pred = nilHandle
	h.magic = headerMagic
	h.class = k
	h.free = true
}

// buddyOf returns the offset of the buddy of the class k block at off.
func buddyOf(off handle, k uint8) handle {
	return off ^ handle(1)<<k
}

// classFor returns the smallest class whose blocks hold n bytes, header
// included. It is never below minClass.
func classFor(n uintptr) uint8 {
	if n <= 1<<minClass {
		return minClass
	}
	return uint8(bits.Len(uint(n - 1)))
}

// blockSize returns the number of bytes in a block of class k.
func blockSize(k uint8) uintptr {
	return uintptr(1) << k
}

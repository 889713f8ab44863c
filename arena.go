package buddy

import (
	"io"
	"log/slog"
	"math/bits"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// DefaultMaxClass is the arena class used when Options.MaxClass is zero. The
// arena is 2^DefaultMaxClass bytes (16 MiB).
const DefaultMaxClass = 24

// Source selects where the arena memory comes from.
type Source int

const (
	// SourceOS maps anonymous memory from the operating system. Platforms
	// without mmap fall back to SourceHeap.
	SourceOS Source = iota

	// SourceHeap allocates the arena as an ordinary Go slice.
	SourceHeap

	// sourceBuffer is a caller-supplied buffer from NewAt.
	sourceBuffer
)

func (s Source) String() string {
	switch s {
	case SourceOS:
		return "os"
	case SourceHeap:
		return "heap"
	case sourceBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// Options configures an Allocator. The zero value is valid.
type Options struct {
	// MaxClass is log2 of the arena size. The arena must hold at least one
	// block of the minimum size, so the smallest accepted value is 6 (64
	// bytes). The largest is 32 (4 GiB) on 64-bit platforms. Zero means
	// DefaultMaxClass.
	MaxClass uint

	// Source selects where the arena comes from. It is ignored by NewAt.
	Source Source

	// Poison fills the payload of every freed block with 0xDD so that reads
	// through stale pointers are easy to spot.
	Poison bool

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Allocator is a binary buddy allocator over a single fixed-size arena.
//
// The arena is acquired on first use (or by Init) and never grows. Every
// block is a power of two in size, starts with a 16-byte header, and is
// aligned to its own size relative to the start of the arena.
//
// Allocator is not safe for concurrent use. Use a mutex if it will be used in
// multiple goroutines.
type Allocator struct {
	maxClass uint8
	source   Source
	poison   bool
	log      *slog.Logger

	acquire func(size uintptr) ([]byte, func() error, error)

	mem     []byte
	unmap   func() error
	dir     directory
	initErr error
	closed  bool

	stats counters
}

// New returns an allocator configured by opts. No memory is acquired until
// the first allocation or a call to Init.
//
// New returns nil if opts.MaxClass or opts.Source is out of range.
func New(opts Options) *Allocator {
	k := opts.MaxClass
	if k == 0 {
		k = DefaultMaxClass
	}
	if k <= minClass || k > maxSupportedClass {
		return nil
	}

	var acquire func(uintptr) ([]byte, func() error, error)
	switch opts.Source {
	case SourceOS:
		acquire = mapRegion
	case SourceHeap:
		acquire = heapRegion
	default:
		return nil
	}

	a := newAllocator(uint8(k), opts)
	a.source = opts.Source
	a.acquire = acquire
	return a
}

// NewAt returns an allocator that manages memory inside the given buffer. The
// arena is the largest power of two that fits in the buffer's capacity,
// limited by opts.MaxClass when it is set. Any space past the arena is
// unused.
//
// As with the type of the slice, the buffer's contents are irrelevant. The
// caller should not modify buf directly after passing it to NewAt.
//
// NewAt returns nil if the buffer holds fewer than 64 bytes or is not 8-byte
// aligned.
func NewAt[T any](buf []T, opts Options) *Allocator {
	addr := unsafe.SliceData(buf)
	if addr == nil {
		return nil
	}
	if uintptr(unsafe.Pointer(addr))%8 != 0 {
		return nil
	}

	n := uintptr(cap(buf)) * unsafe.Sizeof(*addr)
	if n == 0 {
		return nil
	}
	k := uint(bits.Len(uint(n))) - 1
	if opts.MaxClass != 0 && opts.MaxClass < k {
		k = opts.MaxClass
	}
	if k > maxSupportedClass {
		k = maxSupportedClass
	}
	if k <= minClass {
		return nil
	}

	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)

	a := newAllocator(uint8(k), opts)
	a.source = sourceBuffer
	a.acquire = func(size uintptr) ([]byte, func() error, error) {
		return mem[:size], nil, nil
	}
	return a
}

func newAllocator(k uint8, opts Options) *Allocator {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := &Allocator{
		maxClass: k,
		poison:   opts.Poison,
		log:      log,
	}
	a.dir.reset()
	return a
}

// Init acquires the arena if it has not been acquired yet. It is called
// implicitly by the first allocation, so calling it is only necessary to
// surface acquisition errors early.
//
// If acquisition fails Init returns an *ArenaInitError. The failure is
// permanent: every later call returns the same error.
func (a *Allocator) Init() error {
	switch {
	case a.closed:
		return ErrClosed
	case a.mem != nil:
		return nil
	case a.initErr != nil:
		return a.initErr
	}

	size := blockSize(a.maxClass)
	mem, unmap, err := a.acquire(size)
	if err == nil && uintptr(len(mem)) < size {
		err = errors.Errorf("region holds %d bytes", len(mem))
		if unmap != nil {
			_ = unmap()
		}
	}
	if err != nil {
		a.initErr = &ArenaInitError{Size: size, Err: err}
		a.log.Error("buddy: arena acquisition failed", "size", size, "source", a.source, "error", err)
		return a.initErr
	}

	a.mem = mem[:size:size]
	a.unmap = unmap

	// The whole arena starts as one free block.
	a.dir.reset()
	a.header(0).reset(a.maxClass)
	a.insert(a.maxClass, 0)

	a.log.Debug("buddy: arena acquired", "size", size, "source", a.source)
	return nil
}

// Close releases the arena. Every pointer obtained from the allocator becomes
// invalid, and later calls fail with ErrClosed. Closing a closed allocator
// does nothing.
func (a *Allocator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.unmap != nil {
		err = a.unmap()
	}
	a.mem = nil
	a.unmap = nil
	a.dir.reset()

	a.log.Debug("buddy: arena released", "source", a.source, "error", err)
	return errors.Wrap(err, "buddy: release arena")
}

// MaxClass returns log2 of the arena size.
func (a *Allocator) MaxClass() int {
	return int(a.maxClass)
}

// Size returns the total amount of memory (in bytes) managed by the
// allocator, whether or not it has been acquired yet.
func (a *Allocator) Size() int {
	return int(blockSize(a.maxClass))
}

// Cap returns the largest payload a single allocation can have.
func (a *Allocator) Cap() int {
	return a.Size() - headerSize
}

// Contains returns true if the value the pointer points to is contained in the
// arena.
//
// Panics if p is not a pointer or slice.
func (a *Allocator) Contains(p any) bool {
	if len(a.mem) == 0 {
		return false
	}
	addr := uintptr(reflect.ValueOf(p).UnsafePointer())
	base := a.base()
	return addr >= base && addr < base+uintptr(len(a.mem))
}

// Offset returns the offset from the start of the arena of the block that
// holds p. p must have been returned by this allocator and not yet freed.
func (a *Allocator) Offset(p unsafe.Pointer) uintptr {
	return uintptr(a.handleOf(p))
}

// Raw makes a copy of the memory for debugging.
func (a *Allocator) Raw() []byte {
	return append([]byte(nil), a.mem...)
}

func (a *Allocator) base() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(a.mem)))
}

// payload returns the address of the first byte after the header of block h.
func (a *Allocator) payload(h handle) unsafe.Pointer {
	return unsafe.Pointer(&a.mem[int(h)+headerSize])
}

// bytes returns the whole payload of block h as a slice.
func (a *Allocator) bytes(h handle) []byte {
	k := a.header(h).class
	start := int(h) + headerSize
	return a.mem[start : int(h)+int(blockSize(k)) : int(h)+int(blockSize(k))]
}

// handleOf maps a payload pointer back to the block that holds it. It panics
// when the pointer could not have come from Malloc.
func (a *Allocator) handleOf(p unsafe.Pointer) handle {
	if len(a.mem) == 0 {
		panic("buddy: pointer is not in arena")
	}

	addr := uintptr(p)
	base := a.base()
	if addr < base+uintptr(headerSize) || addr >= base+uintptr(len(a.mem)) {
		panic("buddy: pointer is not in arena")
	}

	off := addr - base - uintptr(headerSize)
	if off%blockSize(minClass) != 0 {
		panic("buddy: pointer is not the start of a block")
	}

	h := handle(off)
	if a.header(h).magic != headerMagic {
		panic("buddy: pointer was not returned by Malloc")
	}
	return h
}

package buddy

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidSize is returned when a request is zero bytes or larger than
	// the biggest payload the arena can hold.
	ErrInvalidSize = errors.New("buddy: invalid size")

	// ErrOutOfMemory is returned when no free block is large enough to
	// satisfy the request.
	ErrOutOfMemory = errors.New("buddy: out of memory")

	// ErrOverflow is returned by Calloc when the element count times the
	// element size does not fit in a uintptr. It matches ErrInvalidSize with
	// errors.Is.
	ErrOverflow = errors.WithMessage(ErrInvalidSize, "size computation overflows")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("buddy: allocator closed")
)

// ArenaInitError reports that the arena memory could not be obtained. It is
// permanent for the Allocator that returned it: later calls return the same
// error without trying again.
type ArenaInitError struct {
	// Size is the number of bytes that were requested.
	Size uintptr
	Err  error
}

func (e *ArenaInitError) Error() string {
	return fmt.Sprintf("buddy: cannot acquire %d byte arena: %v", e.Size, e.Err)
}

func (e *ArenaInitError) Unwrap() error {
	return e.Err
}

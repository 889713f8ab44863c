package example

import (
	"github.com/pboyd/buddy"
	"github.com/pkg/errors"
)

// ErrStackOverflow is returned by Push when the memory has been exhausted.
var ErrStackOverflow = errors.New("stack overflow")

// ErrStackUnderflow is returned by Pop when the stack is empty.
var ErrStackUnderflow = errors.New("stack underflow")

// Stack is a simple stack for a single data type which uses a fixed amount
// of memory. Items are stored in one array inside a buddy arena which is
// moved to a bigger block when it fills up and to a smaller one when it is
// mostly empty.
//
// T must not contain Go pointers; the arena is invisible to the garbage
// collector.
type Stack[T any] struct {
	alloc *buddy.Allocator
	items []T
}

// NewStack returns a stack using 2^maxClass bytes of memory.
func NewStack[T any](maxClass uint) *Stack[T] {
	return &Stack[T]{
		alloc: buddy.New(buddy.Options{MaxClass: maxClass, Source: buddy.SourceHeap}),
	}
}

// Push adds a copy of an item to the stack.
//
// Returns ErrStackOverflow if the stack is full.
func (s *Stack[T]) Push(item *T) error {
	if len(s.items) == cap(s.items) {
		if err := s.resize(max(2*cap(s.items), 4)); err != nil {
			return err
		}
	}

	s.items = append(s.items, *item)
	return nil
}

// Pop removes the last item pushed onto the stack and returns it.
//
// If the stack is empty ErrStackUnderflow is returned.
func (s *Stack[T]) Pop() (*T, error) {
	if len(s.items) == 0 {
		return nil, ErrStackUnderflow
	}

	dup := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]

	if len(s.items) <= cap(s.items)/4 {
		// Shrinking only moves the items, so failure is harmless.
		_ = s.resize(cap(s.items) / 2)
	}

	return &dup, nil
}

// Len returns the number of items on the stack.
func (s *Stack[T]) Len() int {
	return len(s.items)
}

func (s *Stack[T]) resize(capacity int) error {
	items, err := buddy.ResizeSlice(s.alloc, s.items, len(s.items), capacity)
	if err != nil {
		if errors.Is(err, buddy.ErrOutOfMemory) || errors.Is(err, buddy.ErrInvalidSize) {
			return ErrStackOverflow
		}
		return err
	}
	s.items = items
	return nil
}

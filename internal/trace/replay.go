package trace

import (
	"hash/fnv"
	"io"
	"log/slog"
	"unsafe"

	"github.com/pboyd/buddy"
	"github.com/pkg/errors"
)

// Outcome is the result of one operation.
type Outcome struct {
	Op Op

	// Offset is the arena offset of the block the id refers to after the
	// operation. It is only set when Err is nil and the op allocated.
	Offset uintptr

	// Err is the allocator error for a failed allocation. Failed
	// allocations do not stop a replay.
	Err error
}

// Result summarizes a replay.
type Result struct {
	Outcomes []Outcome
	Failed   int
}

type liveBlock struct {
	p    unsafe.Pointer
	size uintptr
	fill byte
}

// Replayer applies operations to an allocator and checks that the contents
// of every live allocation survive until it is freed.
type Replayer struct {
	alloc *buddy.Allocator
	live  map[string]liveBlock
	log   *slog.Logger

	// CheckEach runs the allocator's consistency check after every
	// operation, not only on check lines.
	CheckEach bool
}

// NewReplayer returns a replayer for a. A nil logger discards output.
func NewReplayer(a *buddy.Allocator, log *slog.Logger) *Replayer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Replayer{
		alloc: a,
		live:  make(map[string]liveBlock),
		log:   log,
	}
}

// Live returns the number of ids currently allocated.
func (r *Replayer) Live() int {
	return len(r.live)
}

// Run applies ops in order. Allocation failures are recorded in the result;
// misuse of ids, corrupted contents and failed checks stop the replay with
// an error.
func (r *Replayer) Run(ops []Op) (Result, error) {
	var res Result
	for _, op := range ops {
		out, err := r.apply(op)
		if err != nil {
			return res, errors.Wrapf(err, "line %d: %s", op.Line, op.Kind)
		}

		if out.Err != nil {
			res.Failed++
			r.log.Info("allocation failed", "line", op.Line, "op", op.Kind.String(), "id", op.ID, "error", out.Err)
		}
		res.Outcomes = append(res.Outcomes, out)

		if r.CheckEach && op.Kind != Check {
			if err := r.alloc.Check(); err != nil {
				return res, errors.Wrapf(err, "line %d: after %s", op.Line, op.Kind)
			}
		}
	}
	return res, nil
}

// FreeAll releases every live id.
func (r *Replayer) FreeAll() error {
	for id, b := range r.live {
		if err := b.verify(b.size); err != nil {
			return errors.Wrapf(err, "id %s", id)
		}
		r.alloc.Free(b.p)
		delete(r.live, id)
	}
	return nil
}

func (r *Replayer) apply(op Op) (Outcome, error) {
	out := Outcome{Op: op}

	switch op.Kind {
	case Alloc, Calloc:
		if _, ok := r.live[op.ID]; ok {
			return out, errors.Errorf("id %s is already allocated", op.ID)
		}

		var p unsafe.Pointer
		var size uintptr
		if op.Kind == Alloc {
			size = op.Size
			p, out.Err = r.alloc.Malloc(size)
		} else {
			size = op.Count * op.Size
			p, out.Err = r.alloc.Calloc(op.Count, op.Size)
			if out.Err == nil {
				for _, c := range unsafe.Slice((*byte)(p), size) {
					if c != 0 {
						return out, errors.New("calloc returned memory that is not zeroed")
					}
				}
			}
		}
		if out.Err != nil {
			return out, nil
		}

		r.store(op.ID, p, size)
		out.Offset = r.alloc.Offset(p)

	case Realloc:
		old, ok := r.live[op.ID]
		if !ok {
			return out, errors.Errorf("id %s is not allocated", op.ID)
		}

		p, err := r.alloc.Realloc(old.p, op.Size)
		if err != nil {
			out.Err = err
			// The old block must be intact after a failed realloc.
			return out, old.verify(old.size)
		}

		moved := old
		moved.p = p
		if err := moved.verify(min(old.size, op.Size)); err != nil {
			return out, errors.Wrap(err, "contents not preserved")
		}
		r.store(op.ID, p, op.Size)
		out.Offset = r.alloc.Offset(p)

	case Free:
		b, ok := r.live[op.ID]
		if !ok {
			return out, errors.Errorf("id %s is not allocated", op.ID)
		}
		if err := b.verify(b.size); err != nil {
			return out, err
		}
		r.alloc.Free(b.p)
		delete(r.live, op.ID)

	case Check:
		if err := r.alloc.Check(); err != nil {
			return out, err
		}

	default:
		return out, errors.Errorf("unknown operation %d", op.Kind)
	}

	return out, nil
}

// store fills the block with the id's pattern and records it.
func (r *Replayer) store(id string, p unsafe.Pointer, size uintptr) {
	b := liveBlock{p: p, size: size, fill: fillFor(id)}
	data := unsafe.Slice((*byte)(p), size)
	for i := range data {
		data[i] = b.fill
	}
	r.live[id] = b
}

func (b liveBlock) verify(n uintptr) error {
	for i, c := range unsafe.Slice((*byte)(b.p), n) {
		if c != b.fill {
			return errors.Errorf("byte %d is %#x, want %#x", i, c, b.fill)
		}
	}
	return nil
}

// fillFor picks a non-zero byte pattern for an id.
func fillFor(id string) byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return byte(h.Sum32()%255) + 1
}

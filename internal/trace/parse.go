// Package trace reads allocation scripts and replays them against a buddy
// allocator.
//
// A script has one operation per line:
//
//	alloc   <id> <size>
//	calloc  <id> <count> <size>
//	realloc <id> <size>
//	free    <id>
//	check
//
// Blank lines and lines starting with # are ignored. Ids name live
// allocations; an id may be reused once it has been freed.
package trace

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies an operation.
type Kind int

const (
	Alloc Kind = iota
	Calloc
	Realloc
	Free
	Check
)

var kindNames = map[string]Kind{
	"alloc":   Alloc,
	"calloc":  Calloc,
	"realloc": Realloc,
	"free":    Free,
	"check":   Check,
}

func (k Kind) String() string {
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Op is one parsed line of a script.
type Op struct {
	Line int
	Kind Kind
	ID   string

	// Count is only used by Calloc.
	Count uintptr
	Size  uintptr
}

// Parse reads a script. The error names the line of the first problem.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		op, err := parseLine(strings.Fields(text))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read script")
	}
	return ops, nil
}

func parseLine(fields []string) (Op, error) {
	kind, ok := kindNames[fields[0]]
	if !ok {
		return Op{}, errors.Errorf("unknown operation %q", fields[0])
	}

	want := map[Kind]int{Alloc: 3, Calloc: 4, Realloc: 3, Free: 2, Check: 1}[kind]
	if len(fields) != want {
		return Op{}, errors.Errorf("%s takes %d arguments, got %d", kind, want-1, len(fields)-1)
	}

	op := Op{Kind: kind}
	if kind != Check {
		op.ID = fields[1]
	}

	var err error
	switch kind {
	case Alloc, Realloc:
		op.Size, err = parseSize(fields[2])
	case Calloc:
		op.Count, err = parseSize(fields[2])
		if err == nil {
			op.Size, err = parseSize(fields[3])
		}
	}
	return op, err
}

func parseSize(s string) (uintptr, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad size %q", s)
	}
	if uint64(uintptr(n)) != n {
		return 0, errors.Errorf("size %q does not fit in a pointer", s)
	}
	return uintptr(n), nil
}

package buddy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMallocStruct(t *testing.T) {
	assert := assert.New(t)

	type Arbitrary struct {
		Field1 int64
		Field2 float64
		Field3 [16]byte
	}

	a := newHeapAllocator(t, 7)
	p, err := Malloc[Arbitrary](a)
	if !assert.NoError(err) {
		return
	}

	assert.True(a.Contains(p))
	assert.Equal(Arbitrary{}, *p)

	p.Field1 = 10
	p.Field3[15] = 1
	Free(a, p)
	Free[Arbitrary](a, nil)
	assert.Equal(a.Size(), a.FreeBytes())
}

func TestMallocSlice(t *testing.T) {
	assert := assert.New(t)
	a := newHeapAllocator(t, 12)

	s, err := MallocSlice[int64](a, 10)
	require.NoError(t, err)
	assert.Len(s, 10)
	assert.Equal(10, cap(s))
	assert.True(a.Contains(s))
	for _, v := range s {
		assert.Zero(v)
	}

	u, err := MallocSlice[uint8](a, uint16(1), 100)
	require.NoError(t, err)
	assert.Len(u, 1)
	assert.Equal(100, cap(u))

	empty, err := MallocSlice[int](a, 0)
	require.NoError(t, err)
	assert.NotNil(empty)
	assert.Empty(empty)
	FreeSlice(a, empty)

	_, err = MallocSlice[int64](a, 1000)
	assert.ErrorIs(err, ErrInvalidSize)

	FreeSlice(a, s)
	FreeSlice(a, u)
	assert.Equal(a.Size(), a.FreeBytes())
}

func TestMallocSliceInvalidArguments(t *testing.T) {
	a := newHeapAllocator(t, 10)

	assert.Panics(t, func() { MallocSlice[int](a, -1) })
	assert.Panics(t, func() { MallocSlice[int](a, 1, -1) })
	assert.Panics(t, func() { MallocSlice[int](a, 2, 1) })
	assert.Panics(t, func() { MallocSlice[int](a, 1, 2, 3) })
}

func TestResizeSlice(t *testing.T) {
	assert := assert.New(t)
	a := newHeapAllocator(t, 12)

	s, err := MallocSlice[int32](a, 4, 8)
	require.NoError(t, err)
	for i := range s {
		s[i] = int32(i + 1)
	}

	grown, err := ResizeSlice(a, s, 50)
	require.NoError(t, err)
	assert.Len(grown, 50)
	assert.Equal([]int32{1, 2, 3, 4}, grown[:4])
	for _, v := range grown[4:] {
		assert.Zero(v)
	}

	shrunk, err := ResizeSlice(a, grown, 2, 2)
	require.NoError(t, err)
	assert.Equal([]int32{1, 2}, shrunk)

	gone, err := ResizeSlice(a, shrunk, 0)
	require.NoError(t, err)
	assert.Empty(gone)
	assert.Equal(a.Size(), a.FreeBytes())

	fresh, err := ResizeSlice[int32](a, nil, 3)
	require.NoError(t, err)
	assert.Equal([]int32{0, 0, 0}, fresh)
	assert.NoError(a.Check())
}

func TestMallocZeroSize(t *testing.T) {
	assert := assert.New(t)
	a := newHeapAllocator(t, 10)

	p, err := Malloc[struct{}](a)
	require.NoError(t, err)
	assert.NotNil(p)
	assert.False(a.Contains(p))
	Free(a, p)

	s, err := MallocSlice[struct{}](a, 3, 1000)
	require.NoError(t, err)
	assert.Len(s, 3)
	assert.Equal(1000, cap(s))

	s, err = ResizeSlice(a, s, 5000)
	require.NoError(t, err)
	assert.Len(s, 5000)
	FreeSlice(a, s)

	// Nothing above reached the arena.
	assert.Nil(a.mem)
	assert.Equal(uint64(0), a.Stats().Allocs)
}

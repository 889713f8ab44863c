package buddy

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, 16, headerSize)
	assert.Equal(t, uintptr(headerSize), unsafe.Sizeof(blockHeader{}))
	assert.GreaterOrEqual(t, uint64(blockSize(minClass)), uint64(headerSize)+1)
}

func TestBuddyOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(handle(32), buddyOf(0, 5))
	assert.Equal(handle(0), buddyOf(32, 5))
	assert.Equal(handle(64), buddyOf(0, 6))
	assert.Equal(handle(192), buddyOf(128, 6))
	assert.Equal(handle(1<<31), buddyOf(0, 31))

	// Every aligned block is its buddy's buddy, and the pair shares the
	// parent block one class up.
	for k := uint8(minClass); k < 20; k++ {
		for off := handle(0); off < 1<<20; off += handle(1) << k {
			b := buddyOf(off, k)
			assert.Equal(off, buddyOf(b, k))
			assert.NotEqual(off, b)
			assert.Equal(off&^(handle(1)<<k), b&^(handle(1)<<k))
		}
	}
}

func TestClassFor(t *testing.T) {
	tests := []struct {
		n    uintptr
		want uint8
	}{
		{1, minClass},
		{17, minClass},
		{32, minClass},
		{33, 6},
		{64, 6},
		{65, 7},
		{116, 7},
		{1000 + 16, 10},
		{1024, 10},
		{1025, 11},
		{1 << 20, 20},
		{1<<20 + 1, 21},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classFor(tt.n), "classFor(%d)", tt.n)
	}
}

func TestHeaderReset(t *testing.T) {
	assert := assert.New(t)

	b := blockHeader{succ: 1, pred: 2, class: 9}
	b.reset(7)

	assert.Equal(nilHandle, b.succ)
	assert.Equal(nilHandle, b.pred)
	assert.Equal(headerMagic, b.magic)
	assert.Equal(uint8(7), b.class)
	assert.True(b.free)
}

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package buddy

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// mapRegion maps size bytes of anonymous, private memory. The returned
// function unmaps it.
func mapRegion(size uintptr) ([]byte, func() error, error) {
	if size > uintptr(^uint(0)>>1) {
		return nil, nil, errors.Errorf("region of %d bytes exceeds the address space", size)
	}

	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mmap")
	}

	unmap := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			// Already unmapped.
			return nil
		}
		data = nil
		return errors.Wrap(err, "munmap")
	}
	return data, unmap, nil
}

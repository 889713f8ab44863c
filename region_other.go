//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd)

package buddy

// mapRegion uses the Go heap where anonymous mappings are not available.
func mapRegion(size uintptr) ([]byte, func() error, error) {
	return heapRegion(size)
}

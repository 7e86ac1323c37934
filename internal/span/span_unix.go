//go:build unix

package span

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reserve maps size bytes of zeroed anonymous memory and returns it as a
// span. size must be a positive multiple of the page size.
func Reserve(size uintptr) (*Span, error) {
	if size == 0 {
		return nil, fmt.Errorf("span: zero-length reservation")
	}
	if size > uintptr(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("span: reservation too large (%d bytes)", size)
	}
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("span: mmap %d bytes: %w", size, err)
	}
	release := func() error {
		err := unix.Munmap(data)
		if err == unix.EINVAL {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
	return newSpan(data, release), nil
}

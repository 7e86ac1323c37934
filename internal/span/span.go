// Package span provides the raw memory regions backing the managed heap.
//
// Spans are allocated outside the Go heap (anonymous mmap where available)
// so that block addresses are stable for the lifetime of the span and the
// Go runtime never scans or moves them. The engine carves spans into
// blocks; this package only reserves, releases, and addresses the regions.
package span

import "unsafe"

// Span is one contiguous region of heap memory.
type Span struct {
	data    []byte
	base    uintptr
	release func() error
}

// Base returns the address of the first byte of the span.
func (s *Span) Base() uintptr { return s.base }

// Size returns the span length in bytes.
func (s *Span) Size() uintptr { return uintptr(len(s.data)) }

// End returns the address one past the last byte of the span.
func (s *Span) End() uintptr { return s.base + uintptr(len(s.data)) }

// Contains reports whether addr falls inside the span.
func (s *Span) Contains(addr uintptr) bool {
	return addr >= s.base && addr < s.End()
}

// Bytes returns a view of length bytes starting at addr. addr must lie
// within the span and the range must not cross the span end.
func (s *Span) Bytes(addr, length uintptr) []byte {
	off := addr - s.base
	return s.data[off : off+length]
}

// Release returns the span's memory to the operating system. The span must
// not be used afterwards. Double release is a no-op.
func (s *Span) Release() error {
	if s.release == nil {
		return nil
	}
	rel := s.release
	s.release = nil
	s.data = nil
	s.base = 0
	return rel()
}

func newSpan(data []byte, release func() error) *Span {
	return &Span{
		data:    data,
		base:    uintptr(unsafe.Pointer(&data[0])),
		release: release,
	}
}

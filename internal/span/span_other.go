//go:build !unix

package span

import (
	"fmt"
	"sync"

	// The fallback keeps span memory on the Go heap and hands out raw
	// addresses into it, which is only sound while the Go collector does
	// not move heap objects.
	_ "go4.org/unsafe/assume-no-moving-gc"
)

// live pins fallback span buffers so the Go collector keeps them alive for
// as long as the span is reserved.
var live sync.Map // base uintptr -> []byte

// Reserve allocates size bytes of zeroed memory on platforms without
// anonymous mmap support. The buffer is pinned until Release.
func Reserve(size uintptr) (*Span, error) {
	if size == 0 {
		return nil, fmt.Errorf("span: zero-length reservation")
	}
	data := make([]byte, size)
	s := newSpan(data, nil)
	live.Store(s.base, data)
	base := s.base
	s.release = func() error {
		live.Delete(base)
		return nil
	}
	return s, nil
}

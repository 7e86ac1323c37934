package gc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/tracegc/internal/trace"
)

// RootRegion is a fixed set of handle slots the collector scans every
// cycle. It is backed by an uncollectable heap block, so slot contents
// are part of the root set by construction: a handle stored in a slot
// keeps its object alive until the slot is cleared or the region
// released.
type RootRegion struct {
	base     uintptr
	capacity int
}

// NewRoots allocates a root region with the given number of handle slots.
// Slots start empty.
func NewRoots(capacity int) (*RootRegion, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("gc: root region capacity must be positive, got %d", capacity)
	}
	addr, err := ensure().eng.AllocateUncollectable(uintptr(capacity) * trace.WordSize)
	if err != nil {
		return nil, err
	}
	return &RootRegion{base: addr, capacity: capacity}, nil
}

// Cap returns the number of slots in the region.
func (r *RootRegion) Cap() int { return r.capacity }

// Clear empties every slot.
func (r *RootRegion) Clear() {
	for i := 0; i < r.capacity; i++ {
		r.put(i, 0)
	}
}

// Release returns the region's storage to the heap. Objects referenced
// only by this region become collectable.
func (r *RootRegion) Release() error {
	if r.base == 0 {
		return nil
	}
	err := ensure().eng.Free(r.base)
	r.base = 0
	r.capacity = 0
	return err
}

func (r *RootRegion) put(i int, w uintptr) {
	if r.base == 0 {
		panic("gc: use of released root region")
	}
	if i < 0 || i >= r.capacity {
		panic(fmt.Sprintf("gc: root slot %d out of range [0,%d)", i, r.capacity))
	}
	*(*uintptr)(unsafe.Pointer(r.base + uintptr(i)*trace.WordSize)) = w
}

// SetRoot stores a handle into slot i, making its object a collection
// root.
func SetRoot[T any](r *RootRegion, i int, p Ptr[T]) {
	r.put(i, p.addr)
}

// ClearRoot empties slot i.
func ClearRoot(r *RootRegion, i int) {
	r.put(i, 0)
}

// RegisterRoots registers an arbitrary word-aligned memory range for
// conservative scanning each cycle (static slots, foreign stacks). The
// caller guarantees the range stays valid until UnregisterRoots.
func RegisterRoots(start, length uintptr) {
	ensure().eng.AddRootRange(start, length)
}

// UnregisterRoots drops a range previously passed to RegisterRoots.
func UnregisterRoots(start uintptr) {
	ensure().eng.RemoveRootRange(start)
}

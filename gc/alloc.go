package gc

// Allocator is the global-allocator adapter: it routes explicit heap
// traffic through the collector engine so the conservative scan sees a
// complete picture of live memory. Blocks it hands out are scanned as
// roots every cycle but never collected: a handle stored in Malloc
// memory keeps its object alive until the block is freed.
//
// The adapter is stateless; installing it is just using it. First use
// lazily initializes the process engine exactly once.
type Allocator struct{}

// Heap is the process-wide adapter instance.
var Heap Allocator

// Malloc allocates size bytes of zeroed, collector-visible memory.
// Released only by Free; the collector never reclaims it.
func (Allocator) Malloc(size uintptr) (uintptr, error) {
	return ensure().eng.AllocateUncollectable(size)
}

// Realloc resizes a Malloc block, preserving contents up to the smaller
// size. The returned address may differ from addr.
func (Allocator) Realloc(addr, size uintptr) (uintptr, error) {
	return ensure().eng.Reallocate(addr, size)
}

// Free releases a Malloc block immediately (conventional allocation
// discipline). Collector-managed addresses fail with ErrManagedAddress:
// managed memory is reclaimed only through finalization.
func (Allocator) Free(addr uintptr) error {
	return ensure().eng.Free(addr)
}

// Malloc allocates collector-visible memory via the process adapter.
func Malloc(size uintptr) (uintptr, error) { return Heap.Malloc(size) }

// Realloc resizes memory obtained from Malloc.
func Realloc(addr, size uintptr) (uintptr, error) { return Heap.Realloc(addr, size) }

// Free releases memory obtained from Malloc.
func Free(addr uintptr) error { return Heap.Free(addr) }

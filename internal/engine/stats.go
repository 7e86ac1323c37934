package engine

import "time"

// Stats holds collector counters. Counters are maintained unconditionally
// (they are cheap increments under the engine lock); exposure policy is
// the caller's concern.
type Stats struct {
	// Collection activity
	Collections uint64        // completed collection cycles
	PauseTotal  time.Duration // cumulative stop-the-world time

	// Allocation activity
	AllocCalls     uint64 // Allocate + AllocateUncollectable calls
	FreeCalls      uint64 // explicit Free calls
	GrowCalls      uint64 // span reservations
	BytesAllocated uint64 // total bytes handed out
	BytesFreed     uint64 // total bytes recycled

	// Heap shape
	HeapBytes          uint64 // total span bytes reserved
	FreeBytes          uint64 // bytes currently on free lists
	LiveObjects        uint64 // blocks currently tracked (incl. uncollectable)
	UncollectableBytes uint64 // bytes not candidates for collection

	// Finalization
	FinalizersRegistered uint64 // destructors registered over the lifetime
	ObjectsQueued        uint64 // blocks moved to the finalization queue
	ObjectsFinalized     uint64 // blocks reclaimed after their destructor ran

	// Free-list behavior
	CoalesceForward  uint64
	CoalesceBackward uint64
	FreeCells        uint64 // cells currently on the size-class free lists
}

// Stats returns a snapshot of the collector counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stats
	s.LiveObjects = uint64(len(e.objects))

	var free, cells uint64
	for i := range e.freeLists {
		cells += uint64(e.freeLists[i].count)
		for _, cell := range e.freeLists[i].heap {
			free += uint64(cell.size)
		}
	}
	for lb := e.largeFree; lb != nil; lb = lb.next {
		free += uint64(lb.size)
	}
	s.FreeBytes = free
	s.FreeCells = cells
	return s
}

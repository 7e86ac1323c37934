package gc

import (
	"github.com/joshuapare/tracegc/gc/finalize"
	"github.com/joshuapare/tracegc/internal/engine"
	"github.com/joshuapare/tracegc/internal/trace"
)

// Engine is the collector service the pointer layer consumes: allocate,
// register root ranges, collect, register finalizers. The default
// implementation is the in-process conservative mark-sweep engine; an
// alternative can be installed with InitEngine before first use.
type Engine interface {
	// Allocate returns a zeroed managed block of at least size bytes,
	// tagged with the layout descriptor the scanner will use.
	Allocate(size uintptr, desc trace.Descriptor) (uintptr, error)

	// AllocateUncollectable returns a block scanned as a root every cycle
	// but never collected; released only by Free.
	AllocateUncollectable(size uintptr) (uintptr, error)

	// Reallocate resizes an uncollectable block, preserving contents.
	Reallocate(addr, size uintptr) (uintptr, error)

	// Free releases an uncollectable block. Managed addresses fail with
	// ErrManagedAddress.
	Free(addr uintptr) error

	// Collect runs a collection cycle; a no-op when one is in progress.
	Collect()

	// RegisterFinalizer attaches a destructor invoked at most once,
	// strictly after the block becomes unreachable.
	RegisterFinalizer(addr uintptr, fin func())

	// UnregisterFinalizer detaches a previously registered destructor.
	UnregisterFinalizer(addr uintptr)

	// AddRootRange registers [start, start+length) for conservative
	// scanning each cycle.
	AddRootRange(start, length uintptr)

	// RemoveRootRange drops a registered range.
	RemoveRootRange(start uintptr)

	// IsManagedAddress reports whether addr refers to a live block.
	IsManagedAddress(addr uintptr) bool

	// Queue returns the finalization queue the engine sweeps unreachable
	// finalizable blocks into; the worker drains it.
	Queue() *finalize.Queue

	// Stats returns a snapshot of collector counters.
	Stats() engine.Stats

	// Close releases the heap (best-effort teardown).
	Close() error
}

// Stats re-exports the engine counter snapshot type.
type Stats = engine.Stats

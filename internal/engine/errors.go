package engine

import "errors"

var (
	// ErrOutOfMemory indicates the operating system refused to grow the
	// heap. This is fatal for the allocation path: the caller has no way
	// to proceed.
	ErrOutOfMemory = errors.New("engine: out of memory")

	// ErrBadAddress indicates an address that does not refer to a live
	// allocation.
	ErrBadAddress = errors.New("engine: bad block address")

	// ErrManagedAddress indicates an attempt to explicitly free or resize
	// collector-managed memory. Managed blocks are reclaimed only by the
	// collection cycle and the finalization path.
	ErrManagedAddress = errors.New("engine: address is collector-managed")

	// ErrClosed indicates the engine has been shut down.
	ErrClosed = errors.New("engine: closed")
)

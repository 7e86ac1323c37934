// Package finalize runs destructors for heap objects the collector has
// proven unreachable.
//
// # Overview
//
// The collection cycle enqueues unreachable objects; a dedicated worker
// thread drains the queue and invokes each object's destructor exactly
// once. The queue preserves arrival order internally but the contract is
// explicitly order-free: destructors for distinct objects may run in any
// order, which is what makes cyclic structures collectable at all. Code
// inside a destructor must therefore never dereference managed fields of
// the dying object; a cyclic peer may already be finalized.
//
// # State machine
//
// Each object moves through Live → Queued → Finalizing → Finalized. Only
// the Queued → Finalizing transition admits a destructor run, and it is
// claimed with a compare-and-swap, so an object accidentally enqueued twice
// is still finalized at most once.
//
// # Failure isolation
//
// A destructor that panics does not take down the worker: the panic is
// recovered, reported through the configured slog logger, and the object is
// still reclaimed. Subsequently queued objects are unaffected.
//
// # Related packages
//
//   - github.com/joshuapare/tracegc/gc: managed pointer surface
//   - github.com/joshuapare/tracegc/internal/engine: produces queue entries
package finalize

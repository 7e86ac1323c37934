package engine

// finalObject adapts a swept block to the finalize.Object contract. The
// destructor is snapshotted at enqueue time, under the engine lock, so
// the worker never reads the block's fin field concurrently with
// RegisterFinalizer/UnregisterFinalizer writers.
type finalObject struct {
	e   *Engine
	b   *block
	fin func()
}

// BeginFinalize claims the block for finalization. Only the
// Queued → Finalizing transition succeeds, so a block enqueued twice still
// runs its destructor once.
func (o *finalObject) BeginFinalize() bool {
	return o.b.state.CompareAndSwap(stateQueued, stateFinalizing)
}

// Finalize runs the snapshotted destructor. Panic isolation is the
// worker's job.
func (o *finalObject) Finalize() {
	if o.fin != nil {
		o.fin()
	}
}

// Reclaim marks the block Finalized and recycles its storage. The block's
// memory is valid up to this point, so a destructor may read its own
// fields (but must not dereference managed fields; a cyclic peer may
// already be finalized).
func (o *finalObject) Reclaim() {
	o.b.state.Store(stateFinalized)
	o.e.reclaim(o.b, true)
}

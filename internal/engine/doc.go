// Package engine implements the conservative mark-sweep collector backing
// the managed heap.
//
// # Overview
//
// The engine owns a set of memory spans reserved outside the Go heap and
// carves them into blocks using segregated free lists: one min-heap per
// size class for O(log n) best-fit allocation, with O(1) forward and
// backward coalescing on free via start/end offset indexes. Growth reserves
// a new span; oversized requests get a dedicated span.
//
// # Collection
//
// A collection cycle runs entirely under the engine mutex, which every
// allocation and free path also takes; that mutex is the stop-the-world
// point. The current design supports a single mutator thread; concurrent
// mutators serialize on allocation but may race on payload writes during a
// scan, which is not yet guaranteed safe.
//
// Marking is conservative: every word of a root range (registered ranges
// plus all uncollectable blocks) is tested against the set of live block
// addresses, and any word that looks like a block address keeps that block
// alive. Blocks then propagate marks according to their layout descriptor
// (see internal/trace). Precision is traded for not needing exact type
// information; occasional over-retention is an accepted property, missing a
// live reference is not.
//
// Sweeping moves unreachable blocks with a registered finalizer into the
// finalization queue; their storage is recycled only after the finalizer
// has run. Unreachable blocks without finalizers are returned to the free
// lists immediately.
//
// # Thread safety
//
// All exported methods are safe for concurrent use; they serialize on the
// engine mutex. Collect calls that race with a cycle already in progress
// return without starting a second cycle.
package engine

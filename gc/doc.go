// Package gc provides a garbage-collected smart pointer for programs that
// otherwise manage memory by ownership.
//
// # Overview
//
// Ptr[T] is a copyable handle to a value on a traced heap. Copying a Ptr
// is a plain bitwise duplication (there is no reference count to bump),
// and liveness is decided globally by a conservative mark-sweep cycle, not
// locally by any counter. That makes cyclic shared-ownership structures
// safe: two objects pointing at each other are reclaimed when nothing else
// reaches them, with both destructors running exactly once and in no
// particular order.
//
//	type node struct {
//	    next gc.Ptr[node]
//	    val  int
//	}
//
//	roots, _ := gc.NewRoots(1)
//	a := gc.New(node{val: 1})
//	b := gc.New(node{val: 2})
//	a.Value().next = b
//	b.Value().next = a // cycle: fine
//	gc.SetRoot(roots, 0, a)
//
// # Roots
//
// The collector scans registered root regions and all uncollectable
// memory, not Go goroutine stacks. A handle keeps its object alive only
// while it is stored somewhere the collector can see: a RootRegion slot,
// another managed object, or memory obtained from Malloc. A handle held
// only in a Go variable (or squirreled away as a plain integer) is
// invisible to the scan and its object may be collected, the same rule a
// conservative collector applies to addresses hidden from it.
//
// To keep multi-step construction sound, the process engine never starts
// a cycle on its own: collection happens only inside an explicit Collect
// call. Building a structure through local handles and rooting it
// afterwards (as in the example above) is therefore safe; the rule is to
// root anything that must survive before calling Collect. An engine
// installed via InitEngine may enable allocation-pressure collection, in
// which case every handle must be rooted before any further allocation.
//
// # Destructors
//
// A value whose pointer type implements Finalizable gets its Finalize
// method run once the collector proves the object unreachable.
// Finalization happens on a dedicated worker thread, asynchronously, in
// unspecified order across objects. A destructor must never dereference a
// managed Ptr field of its own value: for cyclic structures the peer may
// already be finalized. This is a documented caller obligation, not a
// runtime-checked invariant.
//
// # Storage modes
//
// Values free of Go pointers (numbers, arrays, structs of them, and Ptr
// handles) live directly on the traced heap. Values containing Go
// pointers (strings, slices, maps, interfaces, ...) are boxed on the Go
// heap, pinned until the object dies, and referenced through a forwarding
// word; the collector scans the boxed value in place.
//
// # Statistics
//
// Build with -tags gcstats to enable ReadStats. Counters cover
// allocations, collection cycles, pause time, and finalization activity.
//
// # Thread safety
//
// Allocation, collection, and finalization are internally synchronized.
// The current design point supports a single mutator thread: concurrent
// mutators serialize on allocation but payload writes racing a scan are
// not yet guaranteed safe.
package gc

package gc

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// link is a handle-bearing node for cycle scenarios.
type link struct {
	Next Ptr[link]
	ID   int
}

// tracked exercises the Finalizable auto-registration path. The counter is
// package-level because Finalize runs on the worker goroutine.
type tracked struct {
	ID int
}

var trackedFinalized atomic.Int64

func (t *tracked) Finalize() {
	trackedFinalized.Add(1)
}

// settle forces a cycle and drains the finalization pipeline.
func settle() {
	Collect()
	WaitForFinalizers()
}

// TestAutoFinalizerExactlyOnce: an unreachable Finalizable object is
// destroyed on the next cycle, and never again.
func TestAutoFinalizerExactlyOnce(t *testing.T) {
	before := trackedFinalized.Load()
	New(tracked{ID: 1})

	settle()
	assert.Equal(t, before+1, trackedFinalized.Load())

	settle()
	assert.Equal(t, before+1, trackedFinalized.Load(), "destructor must not run twice")
}

// TestRootedObjectNotFinalized: reachability from a root slot defers
// destruction until the slot is cleared.
func TestRootedObjectNotFinalized(t *testing.T) {
	roots, err := NewRoots(1)
	require.NoError(t, err)
	defer roots.Release() //nolint:errcheck

	var n atomic.Int32
	p := NewWithFinalizer(pair{A: 7}, func(*pair) { n.Add(1) })
	SetRoot(roots, 0, p)

	settle()
	assert.Equal(t, int32(0), n.Load(), "rooted object must survive the cycle")
	assert.Equal(t, 7, p.Value().A)

	ClearRoot(roots, 0)
	settle()
	assert.Equal(t, int32(1), n.Load())
}

// TestCycleFinalized: two objects referencing each other are destroyed
// once the cycle is unreachable, each exactly once.
func TestCycleFinalized(t *testing.T) {
	roots, err := NewRoots(1)
	require.NoError(t, err)
	defer roots.Release() //nolint:errcheck

	var n atomic.Int32
	fin := func(*link) { n.Add(1) }
	a := NewWithFinalizer(link{ID: 1}, fin)
	b := NewWithFinalizer(link{ID: 2}, fin)
	a.Value().Next = b
	b.Value().Next = a
	SetRoot(roots, 0, a)

	settle()
	assert.Equal(t, int32(0), n.Load(), "rooted cycle stays live")
	assert.Equal(t, 2, a.Value().Next.Value().ID, "transitive reachability")

	ClearRoot(roots, 0)
	settle()
	assert.Equal(t, int32(2), n.Load(), "both cycle members destroyed")

	settle()
	assert.Equal(t, int32(2), n.Load())
}

// TestChainReachability: everything reachable from a root through managed
// fields survives; dropping the head releases the whole chain.
func TestChainReachability(t *testing.T) {
	roots, err := NewRoots(1)
	require.NoError(t, err)
	defer roots.Release() //nolint:errcheck

	const depth = 50
	var n atomic.Int32
	fin := func(*link) { n.Add(1) }

	head := NewWithFinalizer(link{ID: 0}, fin)
	cur := head
	for i := 1; i < depth; i++ {
		next := NewWithFinalizer(link{ID: i}, fin)
		cur.Value().Next = next
		cur = next
	}
	SetRoot(roots, 0, head)

	settle()
	assert.Equal(t, int32(0), n.Load())

	ClearRoot(roots, 0)
	settle()
	assert.Equal(t, int32(depth), n.Load())
}

// TestUnregisterFinalizer: a detached destructor never runs; the storage
// is still recycled.
func TestUnregisterFinalizer(t *testing.T) {
	var n atomic.Int32
	p := NewWithFinalizer(pair{A: 1}, func(*pair) { n.Add(1) })
	p.UnregisterFinalizer()

	settle()
	assert.Equal(t, int32(0), n.Load())
	assert.False(t, IsManagedAddress(p.Addr()), "storage recycled without the destructor")
}

// TestFinalizerPanicIsolated: a panicking destructor does not take down
// the pipeline or starve its peers.
func TestFinalizerPanicIsolated(t *testing.T) {
	var n atomic.Int32
	NewWithFinalizer(pair{A: 1}, func(*pair) { panic("destructor failure") })
	NewWithFinalizer(pair{A: 2}, func(*pair) { n.Add(1) })

	settle()
	assert.Equal(t, int32(1), n.Load(), "peer destructor runs despite the panic")
}

// TestInitializeRegistersDestructor: NewUninit defers registration until
// the value is stored.
func TestInitializeRegistersDestructor(t *testing.T) {
	roots, err := NewRoots(1)
	require.NoError(t, err)
	defer roots.Release() //nolint:errcheck

	before := trackedFinalized.Load()
	p := NewUninit[tracked](64)
	SetRoot(roots, 0, p)
	p.Initialize(tracked{ID: 9})

	settle()
	assert.Equal(t, before, trackedFinalized.Load())

	ClearRoot(roots, 0)
	settle()
	assert.Equal(t, before+1, trackedFinalized.Load())
}

// TestHandlesValidUntilExplicitCollect: the default engine never starts a
// cycle from the allocation path, so a handle held only in a Go local
// stays dereferenceable through heavy unrelated allocation. A
// pressure-triggered cycle here would finalize the object while its
// handle is still in use.
func TestHandlesValidUntilExplicitCollect(t *testing.T) {
	type bulky struct {
		Next    Ptr[pair]
		ID      int
		Payload [6]uint64
	}

	var n atomic.Int32
	p := NewWithFinalizer(bulky{ID: 1}, func(*bulky) { n.Add(1) })

	// Several megabytes of churn, well past any allocation-pressure
	// threshold.
	for i := 0; i < 40000; i++ {
		New(bulky{ID: i})
	}

	assert.Equal(t, int32(0), n.Load(), "no cycle may run between explicit Collect calls")
	assert.Equal(t, 1, p.Value().ID, "handle must still dereference")

	// Late rooting after construction-time churn is sound.
	roots, err := NewRoots(1)
	require.NoError(t, err)
	defer roots.Release() //nolint:errcheck
	SetRoot(roots, 0, p)

	settle()
	assert.Equal(t, int32(0), n.Load())
	assert.Equal(t, 1, p.Value().ID)

	ClearRoot(roots, 0)
	settle()
	assert.Equal(t, int32(1), n.Load())
}

// TestBulkFinalization drains a large batch through the worker.
func TestBulkFinalization(t *testing.T) {
	const count = 1000
	var n atomic.Int64
	for i := 0; i < count; i++ {
		NewWithFinalizer(pair{A: i}, func(*pair) { n.Add(1) })
	}

	settle()
	assert.Equal(t, int64(count), n.Load(), "every destructor runs exactly once")

	settle()
	assert.Equal(t, int64(count), n.Load())
}

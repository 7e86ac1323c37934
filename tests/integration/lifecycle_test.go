package integration

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/joshuapare/tracegc/gc"
)

// node is the workload shape used across the lifecycle scenarios: one
// managed reference plus payload.
type node struct {
	Next    gc.Ptr[node]
	ID      int
	Payload [4]uint64
}

// TestEndToEndLifecycle drives the full pipeline: allocate a population of
// finalizable objects, keep a subset rooted across several collections,
// then drop everything and verify each destructor ran exactly once.
func TestEndToEndLifecycle(t *testing.T) {
	const (
		population = 1000
		rooted     = 10
	)

	roots, err := gc.NewRoots(rooted)
	if err != nil {
		t.Fatalf("allocating root region: %v", err)
	}
	defer roots.Release() //nolint:errcheck

	var finalized atomic.Int64
	fin := func(*node) { finalized.Add(1) }

	kept := make([]gc.Ptr[node], 0, rooted)
	for i := 0; i < population; i++ {
		p := gc.NewWithFinalizer(node{ID: i}, fin)
		if i%(population/rooted) == 0 && len(kept) < rooted {
			gc.SetRoot(roots, len(kept), p)
			kept = append(kept, p)
		}
	}

	// Rooted objects must survive any number of cycles.
	for i := 0; i < 3; i++ {
		gc.Collect()
	}
	gc.WaitForFinalizers()
	if got := finalized.Load(); got != population-rooted {
		t.Fatalf("after dropping unrooted objects: finalized = %d, want %d", got, population-rooted)
	}
	for i, p := range kept {
		if !gc.IsManagedAddress(p.Addr()) {
			t.Fatalf("rooted object %d was reclaimed", i)
		}
		if p.Value().ID%(population/rooted) != 0 {
			t.Fatalf("rooted object %d corrupted: ID = %d", i, p.Value().ID)
		}
	}

	// Drop the roots; everything goes.
	roots.Clear()
	gc.Collect()
	gc.WaitForFinalizers()
	if got := finalized.Load(); got != population {
		t.Fatalf("after clearing roots: finalized = %d, want %d", got, population)
	}

	// Idempotence: further cycles find nothing to destroy.
	gc.Collect()
	gc.WaitForFinalizers()
	if got := finalized.Load(); got != population {
		t.Fatalf("destructor ran again: finalized = %d, want %d", got, population)
	}
}

// TestCyclicGraphsReclaimed builds rings of various lengths, roots one
// member of each, and verifies whole rings live and die together.
func TestCyclicGraphsReclaimed(t *testing.T) {
	ringSizes := []int{2, 3, 17}
	total := 0
	for _, n := range ringSizes {
		total += n
	}

	roots, err := gc.NewRoots(len(ringSizes))
	if err != nil {
		t.Fatalf("allocating root region: %v", err)
	}
	defer roots.Release() //nolint:errcheck

	var finalized atomic.Int64
	fin := func(*node) { finalized.Add(1) }

	for slot, size := range ringSizes {
		first := gc.NewWithFinalizer(node{ID: 0}, fin)
		prev := first
		for i := 1; i < size; i++ {
			cur := gc.NewWithFinalizer(node{ID: i}, fin)
			prev.Value().Next = cur
			prev = cur
		}
		prev.Value().Next = first
		gc.SetRoot(roots, slot, first)
	}

	gc.Collect()
	gc.WaitForFinalizers()
	if got := finalized.Load(); got != 0 {
		t.Fatalf("rooted rings lost members: finalized = %d", got)
	}

	roots.Clear()
	gc.Collect()
	gc.WaitForFinalizers()
	if got := finalized.Load(); got != int64(total) {
		t.Fatalf("rings not fully reclaimed: finalized = %d, want %d", got, total)
	}
}

// TestDeepChainIntegrity verifies a long reference chain survives
// collection pressure intact, then dies as a unit.
func TestDeepChainIntegrity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow integration test in short mode")
	}
	const depth = 10000

	roots, err := gc.NewRoots(1)
	if err != nil {
		t.Fatalf("allocating root region: %v", err)
	}
	defer roots.Release() //nolint:errcheck

	var finalized atomic.Int64
	fin := func(*node) { finalized.Add(1) }

	head := gc.NewWithFinalizer(node{ID: 0}, fin)
	gc.SetRoot(roots, 0, head)
	cur := head
	for i := 1; i < depth; i++ {
		next := gc.NewWithFinalizer(node{ID: i}, fin)
		cur.Value().Next = next
		cur = next
		if i%1000 == 0 {
			gc.Collect()
		}
	}

	gc.Collect()
	gc.WaitForFinalizers()
	if got := finalized.Load(); got != 0 {
		t.Fatalf("chain lost %d members while rooted", got)
	}

	// Walk the chain and verify ordering survived the churn.
	cur = head
	for i := 0; i < depth; i++ {
		if cur.Value().ID != i {
			t.Fatalf("chain element %d corrupted: ID = %d", i, cur.Value().ID)
		}
		cur = cur.Value().Next
	}

	roots.Clear()
	gc.Collect()
	gc.WaitForFinalizers()
	if got := finalized.Load(); got != depth {
		t.Fatalf("chain not fully reclaimed: finalized = %d, want %d", got, depth)
	}
}

// TestExplicitMemoryBridgesLiveness stores the only reference to a managed
// object inside explicitly allocated memory and verifies the collector
// honors it through heavy unrelated churn.
func TestExplicitMemoryBridgesLiveness(t *testing.T) {
	addr, err := gc.Malloc(unsafe.Sizeof(uintptr(0)))
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}

	p := gc.New(node{ID: 42})
	*(*uintptr)(unsafe.Pointer(addr)) = p.Addr()

	// Unrelated churn plus repeated collections.
	for i := 0; i < 5; i++ {
		for j := 0; j < 200; j++ {
			gc.New(node{ID: j})
		}
		gc.Collect()
	}
	gc.WaitForFinalizers()

	if !gc.IsManagedAddress(p.Addr()) {
		t.Fatal("object referenced only from explicit memory was reclaimed")
	}
	if got := p.Value().ID; got != 42 {
		t.Fatalf("object corrupted: ID = %d, want 42", got)
	}

	if err := gc.Free(addr); err != nil {
		t.Fatalf("Free: %v", err)
	}
	gc.Collect()
	gc.WaitForFinalizers()
	if gc.IsManagedAddress(p.Addr()) {
		t.Fatal("object survived after its last reference was freed")
	}
}

// TestIndirectValuesThroughChurn verifies Go-heap backed values (strings,
// slices) stay correct across collections while rooted.
func TestIndirectValuesThroughChurn(t *testing.T) {
	roots, err := gc.NewRoots(2)
	if err != nil {
		t.Fatalf("allocating root region: %v", err)
	}
	defer roots.Release() //nolint:errcheck

	ps := gc.New("persistent string payload")
	psl := gc.New([]int{1, 2, 3, 4, 5})
	gc.SetRoot(roots, 0, ps)
	gc.SetRoot(roots, 1, psl)

	for i := 0; i < 3; i++ {
		for j := 0; j < 100; j++ {
			gc.New(node{ID: j})
		}
		gc.Collect()
	}
	gc.WaitForFinalizers()

	if got := *ps.Value(); got != "persistent string payload" {
		t.Fatalf("string payload corrupted: %q", got)
	}
	if got := *psl.Value(); len(got) != 5 || got[4] != 5 {
		t.Fatalf("slice payload corrupted: %v", got)
	}

	roots.Clear()
	gc.Collect()
	gc.WaitForFinalizers()
	if gc.IsManagedAddress(ps.Addr()) {
		t.Fatal("unrooted indirect object survived collection")
	}
}

// TestTeardownReleasesEverything runs last in the file: after Teardown the
// allocator must come back clean for a fresh workload.
func TestTeardownReleasesEverything(t *testing.T) {
	for i := 0; i < 100; i++ {
		gc.New(node{ID: i})
	}
	if err := gc.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}

	p := gc.New(node{ID: 7})
	if got := p.Value().ID; got != 7 {
		t.Fatalf("fresh heap corrupted: ID = %d, want 7", got)
	}
	if err := gc.Teardown(); err != nil {
		t.Fatalf("final Teardown: %v", err)
	}
}

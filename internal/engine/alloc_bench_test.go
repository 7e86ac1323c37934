package engine

import (
	"testing"
	"unsafe"

	"github.com/joshuapare/tracegc/internal/trace"
)

func newBenchEngine(b *testing.B) *Engine {
	b.Helper()
	e := New(Options{DisableAutoCollect: true})
	b.Cleanup(func() { _ = e.Close() })
	return e
}

func BenchmarkAllocate(b *testing.B) {
	e := newBenchEngine(b)
	desc := trace.Descriptor{Kind: trace.Conservative}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Allocate(64, desc); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAllocateFree measures the steady-state alloc/free round-trip,
// which exercises the free lists and coalescing rather than span growth.
func BenchmarkAllocateFree(b *testing.B) {
	e := newBenchEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, err := e.AllocateUncollectable(64)
		if err != nil {
			b.Fatal(err)
		}
		if err := e.Free(addr); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCollectLiveHeap measures a full cycle over a heap where
// everything is reachable, isolating mark cost from sweep cost.
func BenchmarkCollectLiveHeap(b *testing.B) {
	e := newBenchEngine(b)
	const live = 1000

	rootAddr, err := e.AllocateUncollectable(live * trace.WordSize)
	if err != nil {
		b.Fatal(err)
	}
	desc := trace.Descriptor{Kind: trace.Conservative}
	for i := 0; i < live; i++ {
		addr, err := e.Allocate(64, desc)
		if err != nil {
			b.Fatal(err)
		}
		*(*uintptr)(unsafe.Pointer(rootAddr + uintptr(i)*trace.WordSize)) = addr
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Collect()
	}
}

// BenchmarkSizeClassLookup measures the class boundary binary search.
func BenchmarkSizeClassLookup(b *testing.B) {
	table := newSizeClassTable(DefaultConfig)
	sizes := []uintptr{16, 48, 200, 512, 4096, 16000}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.getSizeClass(sizes[i%len(sizes)])
	}
}

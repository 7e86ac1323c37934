package gc

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRootKeepsObjectAlive: a handle in a root slot pins its object across
// cycles; an unrooted sibling is reclaimed.
func TestRootKeepsObjectAlive(t *testing.T) {
	roots, err := NewRoots(2)
	require.NoError(t, err)
	defer roots.Release() //nolint:errcheck

	kept := New(pair{A: 1})
	lost := New(pair{A: 2})
	SetRoot(roots, 0, kept)

	Collect()
	WaitForFinalizers()

	assert.True(t, IsManagedAddress(kept.Addr()))
	assert.Equal(t, 1, kept.Value().A)
	assert.False(t, IsManagedAddress(lost.Addr()))
}

// TestClearEmptiesEverySlot.
func TestClearEmptiesEverySlot(t *testing.T) {
	roots, err := NewRoots(4)
	require.NoError(t, err)
	defer roots.Release() //nolint:errcheck

	ps := make([]Ptr[pair], 4)
	for i := range ps {
		ps[i] = New(pair{A: i})
		SetRoot(roots, i, ps[i])
	}
	roots.Clear()

	Collect()
	WaitForFinalizers()
	for _, p := range ps {
		assert.False(t, IsManagedAddress(p.Addr()))
	}
}

// TestReleaseMakesObjectsCollectable.
func TestReleaseMakesObjectsCollectable(t *testing.T) {
	roots, err := NewRoots(1)
	require.NoError(t, err)

	p := New(pair{A: 3})
	SetRoot(roots, 0, p)
	require.NoError(t, roots.Release())

	Collect()
	WaitForFinalizers()
	assert.False(t, IsManagedAddress(p.Addr()))

	assert.NoError(t, roots.Release(), "double release is a no-op")
}

// TestRootRegionGuards verifies misuse panics.
func TestRootRegionGuards(t *testing.T) {
	_, err := NewRoots(0)
	assert.Error(t, err)
	_, err = NewRoots(-3)
	assert.Error(t, err)

	roots, err := NewRoots(2)
	require.NoError(t, err)
	assert.Equal(t, 2, roots.Cap())

	p := New(1)
	assert.Panics(t, func() { SetRoot(roots, -1, p) })
	assert.Panics(t, func() { SetRoot(roots, 2, p) })

	require.NoError(t, roots.Release())
	assert.Panics(t, func() { SetRoot(roots, 0, p) })
}

// TestRegisterRootsRange: an arbitrary registered memory range is scanned
// conservatively, so a raw handle word stored there acts as a root.
func TestRegisterRootsRange(t *testing.T) {
	slots := new([4]uintptr)

	p := New(pair{A: 11})
	slots[2] = p.Addr()

	start := uintptr(unsafe.Pointer(&slots[0]))
	RegisterRoots(start, unsafe.Sizeof(*slots))

	Collect()
	WaitForFinalizers()
	assert.True(t, IsManagedAddress(p.Addr()))
	assert.Equal(t, 11, p.Value().A)

	slots[2] = 0
	UnregisterRoots(start)
	runtime.KeepAlive(slots)

	Collect()
	WaitForFinalizers()
	assert.False(t, IsManagedAddress(p.Addr()))
}

package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAlignBlock verifies 8-byte round-up behavior.
func TestAlignBlock(t *testing.T) {
	cases := []struct {
		in   uintptr
		want uintptr
	}{
		{0, 0},
		{1, 8},
		{7, 8},
		{8, 8},
		{9, 16},
		{16, 16},
		{4095, 4096},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AlignBlock(c.in), "AlignBlock(%d)", c.in)
	}
}

// TestAlignPage verifies 4KB round-up behavior.
func TestAlignPage(t *testing.T) {
	cases := []struct {
		in   uintptr
		want uintptr
	}{
		{0, 0},
		{1, 4096},
		{4096, 4096},
		{4097, 8192},
		{8192, 8192},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AlignPage(c.in), "AlignPage(%d)", c.in)
	}
}

// TestDescriptorScans covers the per-kind scan dispatch.
func TestDescriptorScans(t *testing.T) {
	blockWords := 4

	atomic := Descriptor{Kind: Atomic}
	for i := 0; i < blockWords; i++ {
		assert.False(t, atomic.Scans(i, blockWords), "atomic word %d", i)
	}

	cons := Descriptor{Kind: Conservative}
	for i := 0; i < blockWords; i++ {
		assert.True(t, cons.Scans(i, blockWords), "conservative word %d", i)
	}
	assert.False(t, cons.Scans(blockWords, blockWords), "conservative past end")

	partial := Descriptor{Kind: Partial, Words: 2}
	assert.True(t, partial.Scans(0, blockWords))
	assert.True(t, partial.Scans(1, blockWords))
	assert.False(t, partial.Scans(2, blockWords))
	assert.False(t, partial.Scans(3, blockWords))

	// Words 0 and 2 hold references, word 1 does not.
	precise := Descriptor{Kind: Precise, Words: 3, Bitmap: 0b101}
	assert.True(t, precise.Scans(0, blockWords))
	assert.False(t, precise.Scans(1, blockWords))
	assert.True(t, precise.Scans(2, blockWords))
	assert.False(t, precise.Scans(3, blockWords))

	indirect := Descriptor{Kind: Indirect, Words: 8}
	assert.True(t, indirect.Scans(0, blockWords))
	assert.False(t, indirect.Scans(1, blockWords))
}

// TestKindString covers diagnostics names.
func TestKindString(t *testing.T) {
	assert.Equal(t, "Atomic", Atomic.String())
	assert.Equal(t, "Conservative", Conservative.String())
	assert.Equal(t, "Partial", Partial.String())
	assert.Equal(t, "Precise", Precise.String())
	assert.Equal(t, "Indirect", Indirect.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}

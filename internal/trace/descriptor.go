// Package trace defines the layout descriptors the collector uses to decide
// which words of an allocated block may hold managed references.
//
// A descriptor is attached to every managed allocation. During the mark
// phase the engine dispatches on the descriptor kind to scan a block:
// atomic blocks are skipped entirely, conservative blocks have every
// word tested as a candidate reference, partial blocks are scanned up to a
// word boundary, precise blocks follow a per-word bitmap, and indirect
// blocks hold a single word pointing at an out-of-heap value that is
// scanned in place.
package trace

import "unsafe"

// Kind selects the scanning strategy for a block.
type Kind uint8

const (
	// Atomic marks a block that can never contain managed references.
	// The mark phase skips it (pointer-free data: numbers, byte buffers).
	Atomic Kind = iota

	// Conservative marks a block whose every word is treated as a
	// potential managed reference. The default when no better layout
	// information is available.
	Conservative

	// Partial marks a block that is conservatively scanned only up to
	// Words; everything past the boundary is known reference-free.
	Partial

	// Precise marks a block scanned according to Bitmap: bit i set means
	// word i may hold a managed reference. Limited to BitmapWords words.
	Precise

	// Indirect marks a block whose payload is a single word holding the
	// address of an external value of Words words, scanned conservatively
	// at that address.
	Indirect
)

// WordSize is the scanning granularity in bytes. Managed references are
// word-sized and word-aligned; sub-word fields are never references.
const WordSize = unsafe.Sizeof(uintptr(0))

// BitmapWords is the maximum traceable length of a Precise descriptor.
const BitmapWords = 64

// Descriptor carries the scanning metadata for one allocation.
type Descriptor struct {
	Kind   Kind
	Words  int    // trace length in words (Partial, Precise, Indirect)
	Bitmap uint64 // per-word reference bitmap (Precise only)
}

// String returns the kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case Atomic:
		return "Atomic"
	case Conservative:
		return "Conservative"
	case Partial:
		return "Partial"
	case Precise:
		return "Precise"
	case Indirect:
		return "Indirect"
	default:
		return "Unknown"
	}
}

// Scans reports whether word i of a block with this descriptor must be
// tested as a candidate reference. The block size (in words) bounds
// Conservative scans; callers pass it in because the descriptor does not
// record block size.
func (d Descriptor) Scans(i, blockWords int) bool {
	switch d.Kind {
	case Atomic:
		return false
	case Conservative:
		return i < blockWords
	case Partial:
		return i < d.Words
	case Precise:
		return i < d.Words && i < BitmapWords && d.Bitmap&(1<<uint(i)) != 0
	case Indirect:
		// Only the single forwarding word is part of the block itself.
		return i == 0
	default:
		return false
	}
}

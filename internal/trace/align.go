package trace

// Alignment utilities for the managed heap. Every block is 8-byte aligned
// so that handle words inside payloads stay word-aligned, and spans grow in
// whole 4KB pages.

const (
	// BlockAlignment is the alignment of every heap block in bytes.
	BlockAlignment = 8

	// PageSize is the granularity of span growth in bytes.
	PageSize = 4096

	blockAlignmentMask = BlockAlignment - 1
	pageAlignmentMask  = PageSize - 1
)

// AlignBlock returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	AlignBlock(1)  = 8
//	AlignBlock(8)  = 8
//	AlignBlock(9)  = 16
func AlignBlock(n uintptr) uintptr {
	return (n + blockAlignmentMask) &^ blockAlignmentMask
}

// AlignPage returns n aligned up to the next 4KB boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n uintptr) uintptr {
	return (n + pageAlignmentMask) &^ pageAlignmentMask
}

// AlignedDown reports whether addr sits on a block boundary.
func AlignedDown(addr uintptr) bool {
	return addr&blockAlignmentMask == 0
}

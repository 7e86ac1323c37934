package engine

import "math"

// SizeClassConfig defines the allocation size class strategy.
// Different configurations trade heap count against internal fragmentation.
type SizeClassConfig struct {
	// Name for this configuration (for benchmarking)
	Name string

	// Small allocation settings (linear increments)
	SmallMin       uintptr // Minimum allocation size (typically 16)
	SmallMax       uintptr // Max for linear increments (typically 256-512)
	SmallIncrement uintptr // Increment size for small allocations

	// Medium/Large allocation settings (logarithmic growth)
	MediumMax    uintptr // Max before the large list (typically 16KB)
	GrowthFactor float64 // Exponential growth factor (1.5, 2.0, etc.)
}

// Predefined configurations.
var (
	// ConfigFineGrained: many small buckets, good for varied workloads.
	ConfigFineGrained = SizeClassConfig{
		Name:           "FineGrained",
		SmallMin:       16,
		SmallMax:       256,
		SmallIncrement: 8,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// ConfigBalanced: good balance between heap count and granularity.
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// ConfigCoarse: fewer buckets, faster operations, more fragmentation.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16384,
		GrowthFactor:   2.0,
	}

	// DefaultConfig is used when none is specified.
	DefaultConfig = ConfigBalanced
)

// sizeClassTable holds the computed size class boundaries.
type sizeClassTable struct {
	config     SizeClassConfig
	boundaries []uintptr // upper bound for each size class
	numClasses int
}

// newSizeClassTable computes size class boundaries from config.
func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	table := &sizeClassTable{
		config:     config,
		boundaries: make([]uintptr, 0, 64),
	}

	// Phase 1: small allocations (linear increments)
	for size := config.SmallMin; size < config.SmallMax; size += config.SmallIncrement {
		table.boundaries = append(table.boundaries, size+config.SmallIncrement-1)
	}

	// Phase 2: medium/large allocations (logarithmic growth)
	if config.SmallMax < config.MediumMax {
		size := config.SmallMax
		for size < config.MediumMax {
			nextSize := uintptr(math.Ceil(float64(size) * config.GrowthFactor))
			if nextSize <= size {
				nextSize = size + 1 // ensure progress
			}
			table.boundaries = append(table.boundaries, nextSize-1)
			size = nextSize
		}
	}

	table.numClasses = len(table.boundaries)
	return table
}

// getSizeClass returns the size class index for a given allocation size.
// Returns table.numClasses for sizes >= MediumMax (use the large list).
func (t *sizeClassTable) getSizeClass(size uintptr) int {
	lo, hi := 0, t.numClasses-1

	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}

	return t.numClasses
}

// String returns a human-readable description of the size class table.
func (t *sizeClassTable) String() string {
	return t.config.Name
}

// NumClasses returns the number of size classes (excluding the large list).
func (t *sizeClassTable) NumClasses() int {
	return t.numClasses
}

package gc

import (
	"errors"

	"github.com/joshuapare/tracegc/internal/engine"
)

var (
	// ErrOutOfMemory indicates the heap could not grow. Fatal for the
	// allocation path; New panics with it.
	ErrOutOfMemory = engine.ErrOutOfMemory

	// ErrManagedAddress indicates an attempt to Free or Realloc memory
	// owned by the collector.
	ErrManagedAddress = engine.ErrManagedAddress

	// ErrBadAddress indicates an address that is not a live allocation.
	ErrBadAddress = engine.ErrBadAddress

	// ErrStatsDisabled is returned by ReadStats unless the module is
	// built with -tags gcstats.
	ErrStatsDisabled = errors.New("gc: statistics disabled (build with -tags gcstats)")
)

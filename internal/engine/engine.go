package engine

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/tracegc/gc/finalize"
	"github.com/joshuapare/tracegc/internal/span"
	"github.com/joshuapare/tracegc/internal/trace"

	// The mark phase follows indirect blocks into Go-heap values through
	// cached uintptr addresses, which is only sound while the Go collector
	// does not move heap objects.
	_ "go4.org/unsafe/assume-no-moving-gc"
)

// Runtime debug flag for allocation logging - controlled by the
// TRACEGC_LOG_ALLOC env var.
var logAlloc = os.Getenv("TRACEGC_LOG_ALLOC") != ""

const (
	// DefaultSpanSize is the default span reservation size (256KB).
	DefaultSpanSize = 256 * 1024

	// DefaultCollectThreshold is the default number of bytes allocated
	// since the last cycle before the allocation path triggers one (1MB).
	DefaultCollectThreshold = 1 << 20

	// minBlockSize is the smallest block the allocator will carve. Split
	// remainders below this are absorbed into the allocation.
	minBlockSize = 16
)

// Block lifecycle states. Only Queued blocks may transition to Finalizing;
// the transition is claimed with a compare-and-swap.
const (
	stateLive uint32 = iota
	stateQueued
	stateFinalizing
	stateFinalized
)

// block is the engine's record of one live allocation.
type block struct {
	addr          uintptr
	size          uintptr
	desc          trace.Descriptor
	fin           func()
	state         atomic.Uint32
	marked        bool
	uncollectable bool
}

// Options configures an Engine. The zero value selects defaults.
type Options struct {
	// SpanSize is the reservation unit for heap growth. Rounded up to a
	// page multiple. Default: DefaultSpanSize.
	SpanSize uintptr

	// CollectThreshold triggers a collection from the allocation path
	// once this many bytes have been allocated since the last cycle.
	// Default: DefaultCollectThreshold.
	CollectThreshold uintptr

	// DisableAutoCollect turns off allocation-pressure collection; cycles
	// then run only on explicit Collect calls.
	DisableAutoCollect bool

	// InteriorPointers treats a word pointing anywhere inside a block as
	// a reference to it, not just words equal to the block address.
	// Costs extra retention, tolerates interior-pointer-only liveness.
	InteriorPointers bool

	// SizeClasses selects the free-list size class strategy.
	// Default: DefaultConfig.
	SizeClasses *SizeClassConfig

	// Queue receives unreachable finalizable blocks. When nil the engine
	// creates its own; callers normally supply the queue their worker
	// drains.
	Queue *finalize.Queue

	// OnReclaim is invoked (with the engine lock held) whenever a managed
	// block's storage is recycled, with the block address. Used by the
	// pointer layer to drop pins on indirect values.
	OnReclaim func(addr uintptr)
}

// Engine is the conservative mark-sweep collector.
type Engine struct {
	mu   sync.Mutex
	opts Options

	spans   []*span.Span // sorted by base address
	objects map[uintptr]*block

	sizeTable *sizeClassTable
	freeLists []freeList
	largeFree *largeBlock
	byOff     map[uintptr]*freeCell
	startIdx  map[uintptr]uintptr // free block addr -> size
	endIdx    map[uintptr]uintptr // free block end -> addr
	cellPool  sync.Pool

	roots map[uintptr]uintptr // range start -> length in bytes

	queue        *finalize.Queue
	collecting   atomic.Bool
	bytesSinceGC uintptr

	stats  Stats
	closed bool
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	if opts.SpanSize == 0 {
		opts.SpanSize = DefaultSpanSize
	}
	opts.SpanSize = trace.AlignPage(opts.SpanSize)
	if opts.CollectThreshold == 0 {
		opts.CollectThreshold = DefaultCollectThreshold
	}
	config := opts.SizeClasses
	if config == nil {
		config = &DefaultConfig
	}
	q := opts.Queue
	if q == nil {
		q = finalize.NewQueue()
	}

	table := newSizeClassTable(*config)
	return &Engine{
		opts:      opts,
		objects:   make(map[uintptr]*block),
		sizeTable: table,
		freeLists: make([]freeList, table.NumClasses()),
		byOff:     make(map[uintptr]*freeCell, 256),
		startIdx:  make(map[uintptr]uintptr),
		endIdx:    make(map[uintptr]uintptr),
		roots:     make(map[uintptr]uintptr),
		queue:     q,
		cellPool: sync.Pool{
			New: func() any {
				return &freeCell{}
			},
		},
	}
}

// Queue returns the finalization queue the engine sweeps into.
func (e *Engine) Queue() *finalize.Queue { return e.queue }

// RegisterFinalizer associates a destructor with a managed block. The
// destructor is invoked at most once, strictly after the block becomes
// unreachable. Re-registering replaces the previous destructor.
func (e *Engine) RegisterFinalizer(addr uintptr, fin func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.objects[addr]
	if !ok || b.uncollectable {
		return
	}
	if b.fin == nil && fin != nil {
		e.stats.FinalizersRegistered++
	}
	b.fin = fin
}

// UnregisterFinalizer removes a previously registered destructor.
func (e *Engine) UnregisterFinalizer(addr uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.objects[addr]; ok {
		b.fin = nil
	}
}

// AddRootRange registers [start, start+length) for conservative scanning
// at the start of every collection cycle.
func (e *Engine) AddRootRange(start, length uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roots[start] = length
}

// RemoveRootRange drops a previously registered root range.
func (e *Engine) RemoveRootRange(start uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.roots, start)
}

// IsManagedAddress reports whether addr is the base of a live block
// (or falls inside one when interior pointers are enabled).
func (e *Engine) IsManagedAddress(addr uintptr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.objects[addr]; ok {
		return true
	}
	if !e.opts.InteriorPointers {
		return false
	}
	for _, b := range e.objects {
		if addr >= b.addr && addr < b.addr+b.size {
			return true
		}
	}
	return false
}

// Close releases all heap spans. Best-effort: blocks still queued for
// finalization are abandoned, their destructors never run.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.queue.Close()

	var firstErr error
	for _, sp := range e.spans {
		if err := sp.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.spans = nil
	e.objects = nil
	e.byOff = nil
	e.startIdx = nil
	e.endIdx = nil
	e.largeFree = nil
	e.roots = nil
	return firstErr
}

// findSpan returns the span containing addr, or nil.
// O(log S) binary search on the sorted span slice.
func (e *Engine) findSpan(addr uintptr) *span.Span {
	lo, hi := 0, len(e.spans)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		sp := e.spans[mid]
		switch {
		case addr < sp.Base():
			hi = mid - 1
		case addr >= sp.End():
			lo = mid + 1
		default:
			return sp
		}
	}
	return nil
}

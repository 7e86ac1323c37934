package engine

import (
	"sort"
	"time"
	"unsafe"

	"github.com/joshuapare/tracegc/internal/trace"
)

// Collect runs a full stop-the-world collection cycle: mark from roots,
// then sweep unreachable blocks. If a cycle is already in progress the
// call returns immediately without starting a second one: the world is
// already stopped and the cost already paid.
func (e *Engine) Collect() {
	if !e.collecting.CompareAndSwap(false, true) {
		return
	}
	defer e.collecting.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.collectLocked()
}

// maybeCollectLocked runs a cycle from the allocation path once enough
// bytes have been allocated since the last one. The allocation call is the
// mutator's safe point: it already holds the engine lock, so the heap is
// in a consistent state when scanning starts.
func (e *Engine) maybeCollectLocked() {
	if e.opts.DisableAutoCollect || e.bytesSinceGC < e.opts.CollectThreshold {
		return
	}
	if !e.collecting.CompareAndSwap(false, true) {
		return
	}
	defer e.collecting.Store(false)
	e.collectLocked()
}

// collectLocked performs the mark and sweep phases. Caller holds e.mu.
func (e *Engine) collectLocked() {
	start := time.Now()

	// Snapshot live managed blocks, sorted by address, for candidate
	// resolution. Uncollectable blocks are roots, not candidates.
	candidates := make([]*block, 0, len(e.objects))
	var uncollectable []*block
	for _, b := range e.objects {
		if b.uncollectable {
			uncollectable = append(uncollectable, b)
			continue
		}
		b.marked = false
		candidates = append(candidates, b)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].addr < candidates[j].addr
	})

	// Mark phase: seed from registered root ranges and every
	// uncollectable block, then propagate through marked blocks.
	var work []*block
	markWord := func(w uintptr) {
		b := e.lookupCandidate(candidates, w)
		if b != nil && !b.marked {
			b.marked = true
			work = append(work, b)
		}
	}

	for rstart, rlen := range e.roots {
		scanRange(rstart, rstart+rlen, markWord)
	}
	for _, b := range uncollectable {
		scanRange(b.addr, b.addr+b.size, markWord)
	}

	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		e.scanBlock(b, markWord)
	}

	// Sweep phase: queue unreachable finalizable blocks, reclaim the rest.
	for _, b := range candidates {
		if b.marked || b.state.Load() != stateLive {
			continue
		}
		if b.fin != nil {
			b.state.Store(stateQueued)
			e.stats.ObjectsQueued++
			e.queue.Enqueue(&finalObject{e: e, b: b, fin: b.fin})
		} else {
			e.reclaimLocked(b, false)
		}
	}

	e.bytesSinceGC = 0
	e.stats.Collections++
	e.stats.PauseTotal += time.Since(start)
}

// scanBlock propagates marks out of one reachable block according to its
// layout descriptor.
func (e *Engine) scanBlock(b *block, markWord func(uintptr)) {
	if b.desc.Kind == trace.Atomic {
		return
	}

	if b.desc.Kind == trace.Indirect {
		// The payload's first word forwards to an out-of-heap value that
		// holds the object's fields; scan it conservatively.
		base := *(*uintptr)(unsafe.Pointer(b.addr))
		if base != 0 {
			scanRange(base, base+uintptr(b.desc.Words)*trace.WordSize, markWord)
		}
		return
	}

	blockWords := int(b.size / trace.WordSize)
	for i := 0; i < blockWords; i++ {
		if !b.desc.Scans(i, blockWords) {
			continue
		}
		w := *(*uintptr)(unsafe.Pointer(b.addr + uintptr(i)*trace.WordSize))
		markWord(w)
	}
}

// scanRange conservatively visits every word-aligned word in [lo, hi).
func scanRange(lo, hi uintptr, markWord func(uintptr)) {
	for a := lo; a+trace.WordSize <= hi; a += trace.WordSize {
		markWord(*(*uintptr)(unsafe.Pointer(a)))
	}
}

// lookupCandidate resolves a scanned word to a live managed block. Handle
// words may carry low tag bits, so the word is aligned down before the
// lookup. With interior pointers enabled any address inside a block
// resolves to it.
func (e *Engine) lookupCandidate(candidates []*block, w uintptr) *block {
	w &^= trace.BlockAlignment - 1
	if len(candidates) == 0 || w == 0 {
		return nil
	}

	// Largest base <= w.
	i := sort.Search(len(candidates), func(i int) bool {
		return candidates[i].addr > w
	})
	if i == 0 {
		return nil
	}
	b := candidates[i-1]
	if b.addr == w {
		return b
	}
	if e.opts.InteriorPointers && w < b.addr+b.size {
		return b
	}
	return nil
}

package engine

import (
	"container/heap"
	"fmt"
	"os"
	"sort"
	"unsafe"

	"github.com/joshuapare/tracegc/internal/span"
	"github.com/joshuapare/tracegc/internal/trace"
)

// Allocate carves a managed block of at least size bytes and tags it with
// the given layout descriptor. The payload is zeroed. Allocation may
// trigger a collection cycle under allocation pressure.
func (e *Engine) Allocate(size uintptr, desc trace.Descriptor) (uintptr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	e.maybeCollectLocked()

	addr, realSize, err := e.allocLocked(size)
	if err != nil {
		return 0, err
	}

	b := &block{addr: addr, size: realSize, desc: desc}
	e.objects[addr] = b

	e.stats.AllocCalls++
	e.stats.BytesAllocated += uint64(realSize)
	e.bytesSinceGC += realSize
	return addr, nil
}

// AllocateUncollectable carves a block that is scanned as a root every
// cycle but never collected; it is released only by an explicit Free.
func (e *Engine) AllocateUncollectable(size uintptr) (uintptr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	addr, realSize, err := e.allocLocked(size)
	if err != nil {
		return 0, err
	}

	b := &block{
		addr:          addr,
		size:          realSize,
		desc:          trace.Descriptor{Kind: trace.Conservative},
		uncollectable: true,
	}
	e.objects[addr] = b

	e.stats.AllocCalls++
	e.stats.BytesAllocated += uint64(realSize)
	e.stats.UncollectableBytes += uint64(realSize)
	return addr, nil
}

// Reallocate resizes an uncollectable block, preserving its contents up to
// the smaller of the old and new sizes. Managed blocks cannot be resized:
// copies of their handles would go stale.
func (e *Engine) Reallocate(addr, size uintptr) (uintptr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	b, ok := e.objects[addr]
	if !ok {
		return 0, ErrBadAddress
	}
	if !b.uncollectable {
		return 0, ErrManagedAddress
	}

	newAddr, realSize, err := e.allocLocked(size)
	if err != nil {
		return 0, err
	}

	n := min(b.size, realSize)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(newAddr)), n),
		unsafe.Slice((*byte)(unsafe.Pointer(addr)), n))

	nb := &block{
		addr:          newAddr,
		size:          realSize,
		desc:          b.desc,
		uncollectable: true,
	}
	e.objects[newAddr] = nb
	e.stats.UncollectableBytes += uint64(realSize)

	delete(e.objects, addr)
	e.stats.UncollectableBytes -= uint64(b.size)
	e.stats.BytesFreed += uint64(b.size)
	e.freeBlockLocked(addr, b.size)

	return newAddr, nil
}

// Free releases an uncollectable block immediately. Freeing a managed
// block fails with ErrManagedAddress: managed memory is reclaimed only by
// the collection cycle and the finalization path.
func (e *Engine) Free(addr uintptr) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	b, ok := e.objects[addr]
	if !ok {
		return ErrBadAddress
	}
	if !b.uncollectable {
		return ErrManagedAddress
	}

	delete(e.objects, addr)
	e.stats.FreeCalls++
	e.stats.BytesFreed += uint64(b.size)
	e.stats.UncollectableBytes -= uint64(b.size)
	e.freeBlockLocked(addr, b.size)
	return nil
}

// reclaim recycles a managed block's storage. Called by the sweep phase
// for unreachable blocks without finalizers, and by the finalization
// worker (through finalObject.Reclaim) after a destructor has run.
func (e *Engine) reclaim(b *block, finalized bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.reclaimLocked(b, finalized)
}

func (e *Engine) reclaimLocked(b *block, finalized bool) {
	if _, ok := e.objects[b.addr]; !ok {
		return
	}
	delete(e.objects, b.addr)
	if e.opts.OnReclaim != nil {
		e.opts.OnReclaim(b.addr)
	}
	e.stats.BytesFreed += uint64(b.size)
	if finalized {
		e.stats.ObjectsFinalized++
	}
	e.freeBlockLocked(b.addr, b.size)
}

// ============================================================================
// Internal allocation helpers
// ============================================================================

// allocLocked finds or grows space for an aligned block of at least size
// bytes, zeroes it, and returns its address and real size.
func (e *Engine) allocLocked(size uintptr) (uintptr, uintptr, error) {
	if size == 0 {
		size = trace.WordSize
	}
	size = trace.AlignBlock(size)

	cell := e.findCellLocked(size)
	if cell == nil {
		if err := e.growLocked(size); err != nil {
			return 0, 0, err
		}
		cell = e.findCellLocked(size)
		if cell == nil {
			// A fresh span always satisfies the request that grew it.
			return 0, 0, fmt.Errorf("%w: no block for %d bytes after growth", ErrOutOfMemory, size)
		}
	}

	addr := cell.off
	cellSize := cell.size
	e.putFreeCell(cell)

	// Split: keep the head, return the tail to the free lists.
	rem := cellSize - size
	if rem >= minBlockSize {
		e.insertFreeCell(addr+size, rem)
	} else {
		size = cellSize // absorb the remainder
	}

	// Reused cells may hold stale words that would over-retain; hand out
	// zeroed payloads.
	clear(unsafe.Slice((*byte)(unsafe.Pointer(addr)), size))

	return addr, size, nil
}

// findCellLocked pops a best-fit free cell of at least need bytes, or
// returns nil when none exists.
func (e *Engine) findCellLocked(need uintptr) *freeCell {
	for sc := e.sizeTable.getSizeClass(need); sc < len(e.freeLists); sc++ {
		if cell := e.allocFromSizeClass(sc, need); cell != nil {
			return cell
		}
	}
	return e.allocFromLarge(need)
}

// allocFromSizeClass allocates from a size class heap using best-fit.
//
// Fast path (O(log n)): the min-heap guarantees heap[0] is the smallest
// cell. If heap[0].size >= need, it is the best fit: pop immediately.
//
// Slow path: heap[0] is too small but larger cells in the class may fit;
// a bounded scan accepts the first good-enough fit.
func (e *Engine) allocFromSizeClass(sc int, need uintptr) *freeCell {
	list := &e.freeLists[sc]
	if list.heap.Len() == 0 {
		return nil
	}

	if list.heap[0].size >= need {
		cell := heap.Pop(&list.heap).(*freeCell) //nolint:errcheck // heap contains only *freeCell
		list.count--
		e.dropCellIndexes(cell.off, cell.size)
		return cell
	}

	const (
		maxSlowPathScan = 32 // never scan more than 32 cells
		fitTolerance    = 64 // accept cells within 64 bytes of optimal
	)

	bestIdx := -1
	bestSize := ^uintptr(0)
	maxAcceptable := need + fitTolerance

	scanLimit := min(list.heap.Len(), maxSlowPathScan)
	for i := 1; i < scanLimit; i++ {
		cellSize := list.heap[i].size
		if cellSize < need {
			continue
		}
		if cellSize <= maxAcceptable {
			bestIdx = i
			break
		}
		if cellSize < bestSize {
			bestIdx = i
			bestSize = cellSize
		}
	}
	if bestIdx == -1 {
		return nil
	}

	cell := heap.Remove(&list.heap, bestIdx).(*freeCell) //nolint:errcheck // heap contains only *freeCell
	list.count--
	e.dropCellIndexes(cell.off, cell.size)
	return cell
}

// allocFromLarge services requests from the large-block linked list.
func (e *Engine) allocFromLarge(need uintptr) *freeCell {
	var prev *largeBlock
	for curr := e.largeFree; curr != nil; curr = curr.next {
		if curr.size >= need {
			if prev == nil {
				e.largeFree = curr.next
			} else {
				prev.next = curr.next
			}
			cell := e.getFreeCell()
			cell.off = curr.off
			cell.size = curr.size
			e.dropCellIndexes(curr.off, curr.size)
			return cell
		}
		prev = curr
	}
	return nil
}

// growLocked reserves a new span big enough for need bytes and seeds the
// free lists with it.
func (e *Engine) growLocked(need uintptr) error {
	spanSize := max(e.opts.SpanSize, trace.AlignPage(need))

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[GROW] #%d: need=%d -> reserving %dKB span (%d spans, %d live objects)\n",
			e.stats.GrowCalls+1, need, spanSize/1024, len(e.spans), len(e.objects))
	}

	sp, err := span.Reserve(spanSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	// Keep spans sorted by base for O(log S) lookup.
	i := sort.Search(len(e.spans), func(i int) bool {
		return e.spans[i].Base() > sp.Base()
	})
	e.spans = append(e.spans, nil)
	copy(e.spans[i+1:], e.spans[i:])
	e.spans[i] = sp

	e.stats.GrowCalls++
	e.stats.HeapBytes += uint64(spanSize)
	e.insertFreeCell(sp.Base(), sp.Size())
	return nil
}

// freeBlockLocked returns [off, off+size) to the free lists, coalescing
// with free neighbors. Coalescing never crosses span boundaries even when
// the OS happens to place spans adjacently.
func (e *Engine) freeBlockLocked(off, size uintptr) {
	sp := e.findSpan(off)
	if sp == nil {
		return
	}

	// Forward coalesce: a free block starting exactly at our end.
	next := off + size
	if nsize, ok := e.startIdx[next]; ok && next < sp.End() {
		e.removeFreeCell(next, nsize)
		size += nsize
		e.stats.CoalesceForward++
	}

	// Backward coalesce: a free block ending exactly at our start.
	if poff, ok := e.endIdx[off]; ok && sp.Contains(poff) {
		psize := e.startIdx[poff]
		e.removeFreeCell(poff, psize)
		off = poff
		size += psize
		e.stats.CoalesceBackward++
	}

	e.insertFreeCell(off, size)
}

// insertFreeCell inserts a free block into the appropriate heap and the
// coalescing indexes. O(log n) via min-heap.
func (e *Engine) insertFreeCell(off, size uintptr) {
	sc := e.sizeTable.getSizeClass(size)

	if sc < len(e.freeLists) {
		cell := e.getFreeCell()
		cell.off = off
		cell.size = size
		cell.sc = sc

		heap.Push(&e.freeLists[sc].heap, cell)
		e.freeLists[sc].count++
		e.byOff[off] = cell
	} else {
		e.largeFree = &largeBlock{off: off, size: size, next: e.largeFree}
	}

	e.startIdx[off] = size
	e.endIdx[off+size] = off
}

// removeFreeCell removes a free block from its heap or the large list.
// O(log n) via heap.Remove with O(1) lookup through the byOff map.
func (e *Engine) removeFreeCell(off, size uintptr) {
	sc := e.sizeTable.getSizeClass(size)

	if sc < len(e.freeLists) {
		cell := e.byOff[off]
		if cell == nil {
			return
		}
		heap.Remove(&e.freeLists[sc].heap, cell.heapIndex)
		e.freeLists[sc].count--
		e.dropCellIndexes(off, size)
		e.putFreeCell(cell)
		return
	}

	var prev *largeBlock
	for curr := e.largeFree; curr != nil; curr = curr.next {
		if curr.off == off {
			if prev == nil {
				e.largeFree = curr.next
			} else {
				prev.next = curr.next
			}
			e.dropCellIndexes(off, size)
			return
		}
		prev = curr
	}
}

// dropCellIndexes removes a free block from the byOff map and the
// coalescing indexes.
func (e *Engine) dropCellIndexes(off, size uintptr) {
	delete(e.byOff, off)
	delete(e.startIdx, off)
	delete(e.endIdx, off+size)
}

func (e *Engine) getFreeCell() *freeCell {
	cell, ok := e.cellPool.Get().(*freeCell)
	if !ok {
		return &freeCell{}
	}
	return cell
}

func (e *Engine) putFreeCell(cell *freeCell) {
	cell.heapIndex = -1
	cell.sc = 0
	e.cellPool.Put(cell)
}

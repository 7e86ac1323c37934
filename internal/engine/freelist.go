package engine

// freeList is a size-class-specific free list using a min-heap.
type freeList struct {
	heap  freeCellHeap // min-heap keyed on size
	count int
}

// freeCell represents a free block in the heap.
// Used in min-heaps for O(log n) allocation and removal.
type freeCell struct {
	off       uintptr // block address
	size      uintptr // block size in bytes
	sc        int     // size class (which heap this belongs to)
	heapIndex int     // position in heap (for heap.Remove)
}

// freeCellHeap implements heap.Interface for a min-heap keyed on cell size.
// Smallest cells are at the top, giving best-fit allocation.
type freeCellHeap []*freeCell

func (h *freeCellHeap) Len() int { return len(*h) }

func (h *freeCellHeap) Less(i, j int) bool {
	return (*h)[i].size < (*h)[j].size
}

func (h *freeCellHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeCellHeap) Push(x any) {
	cell := x.(*freeCell) //nolint:errcheck // heap.Interface contract guarantees type
	cell.heapIndex = len(*h)
	*h = append(*h, cell)
}

func (h *freeCellHeap) Pop() any {
	old := *h
	n := len(old)
	cell := old[n-1]
	cell.heapIndex = -1
	*h = old[0 : n-1]
	return cell
}

// largeBlock is a free block above MediumMax, kept on a simple linked list.
type largeBlock struct {
	off  uintptr
	size uintptr
	next *largeBlock
}

package finalize

import "sync"

// Object is one unreachable heap object awaiting its destructor. The
// engine implements it on top of its block metadata.
type Object interface {
	// BeginFinalize claims the object for finalization. It must perform
	// the Queued → Finalizing transition atomically and return false if
	// the object was already claimed, preventing double finalization.
	BeginFinalize() bool

	// Finalize runs the destructor. It may panic; the worker isolates it.
	Finalize()

	// Reclaim marks the object Finalized and recycles its storage. Called
	// exactly once per claimed object, after Finalize returns or panics.
	Reclaim()
}

// Queue is the hand-off between the collection cycle and the finalization
// worker. Enqueue never blocks; Next blocks until an item arrives or the
// queue is closed.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Object
	pending int // enqueued but not yet fully processed
	closed  bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds an object for finalization. Enqueueing on a closed queue is
// a no-op; the object is dropped without running its destructor.
func (q *Queue) Enqueue(obj Object) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, obj)
	q.pending++
	q.cond.Broadcast()
}

// Next removes and returns the oldest queued object, blocking until one is
// available. It returns false once the queue is closed and drained.
func (q *Queue) Next() (Object, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	obj := q.items[0]
	q.items = q.items[1:]
	return obj, true
}

// done signals that one dequeued object has been fully processed.
func (q *Queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending > 0 {
		q.pending--
	}
	q.cond.Broadcast()
}

// Len returns the number of objects waiting in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until every object enqueued so far has been finalized and
// reclaimed, or the queue is closed.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 && !q.closed {
		q.cond.Wait()
	}
}

// Close stops the queue. Blocked Next and Wait callers are released;
// objects still queued are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	q.cond.Broadcast()
}

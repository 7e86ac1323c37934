package finalize

import (
	"io"
	"log/slog"
	"runtime"
	"sync"
)

// Worker drains a Queue on a dedicated OS thread, running one destructor
// at a time. Keeping finalization off mutator threads means the program's
// main execution path never pays destructor latency.
type Worker struct {
	q   *Queue
	log *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewWorker creates a worker for q. A nil logger discards panic reports.
func NewWorker(q *Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		q:    q,
		log:  logger,
		done: make(chan struct{}),
	}
}

// Start launches the worker thread. Calling Start more than once is a
// no-op.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Stop closes the queue and waits for the worker thread to exit. Objects
// still queued at Stop time are dropped without finalization (best-effort
// process teardown semantics).
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.q.Close()
		<-w.done
	})
}

func (w *Worker) run() {
	// Destructors observe a stable thread for their whole execution.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	for {
		obj, ok := w.q.Next()
		if !ok {
			return
		}
		if obj.BeginFinalize() {
			w.finalizeOne(obj)
			obj.Reclaim()
		}
		w.q.done()
	}
}

// finalizeOne runs a single destructor with panic isolation so one failing
// destructor cannot prevent the rest of the queue from draining.
func (w *Worker) finalizeOne(obj Object) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("finalizer panicked", "panic", r)
		}
	}()
	obj.Finalize()
}

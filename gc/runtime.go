package gc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/joshuapare/tracegc/gc/finalize"
	"github.com/joshuapare/tracegc/internal/engine"
)

// runtimeState is the process-wide allocator state: the active engine,
// the finalization pipeline, and the pin table for indirectly stored
// values. It backs every allocation in the module, so it is initialized
// once (lazily or explicitly) and torn down best-effort.
type runtimeState struct {
	eng    Engine
	queue  *finalize.Queue
	worker *finalize.Worker

	pinMu sync.Mutex
	pins  map[uintptr]any // block addr -> boxed Go value
}

var (
	procMu sync.Mutex
	proc   *runtimeState

	// nextLogger is applied to the worker on the next initialization.
	nextLogger *slog.Logger
)

// ensure returns the process runtime state, initializing it on first use.
// Initialization is idempotent: concurrent first allocations observe a
// single engine.
func ensure() *runtimeState {
	procMu.Lock()
	defer procMu.Unlock()
	return ensureLocked()
}

func ensureLocked() *runtimeState {
	if proc != nil {
		return proc
	}

	s := &runtimeState{
		queue: finalize.NewQueue(),
		pins:  make(map[uintptr]any),
	}
	// Handles held only in Go variables are invisible to the scan, so a
	// cycle triggered from inside an allocation call could reclaim an
	// object whose handle the caller is still constructing with. The
	// process engine therefore collects only at explicit Collect calls.
	s.eng = engine.New(engine.Options{
		Queue:              s.queue,
		OnReclaim:          s.unpin,
		DisableAutoCollect: true,
	})
	s.worker = finalize.NewWorker(s.queue, nextLogger)
	s.worker.Start()
	proc = s
	return s
}

// Init initializes the process allocator state explicitly. Calling Init
// when already initialized is a no-op.
func Init() {
	ensure()
}

// InitEngine installs a custom collector engine. It fails once any
// allocation has initialized the default engine.
func InitEngine(e Engine) error {
	procMu.Lock()
	defer procMu.Unlock()
	if proc != nil {
		return fmt.Errorf("gc: allocator state already initialized")
	}
	s := &runtimeState{
		queue: e.Queue(),
		pins:  make(map[uintptr]any),
	}
	s.eng = e
	s.worker = finalize.NewWorker(s.queue, nextLogger)
	s.worker.Start()
	proc = s
	return nil
}

// SetLogger routes finalizer failure reports through the given logger.
// Takes effect at the next initialization; call it before Init.
func SetLogger(l *slog.Logger) {
	procMu.Lock()
	defer procMu.Unlock()
	nextLogger = l
}

// Teardown stops the finalization worker and releases the heap.
// Best-effort: destructors still queued are dropped. The allocator
// reinitializes lazily on the next use.
func Teardown() error {
	procMu.Lock()
	defer procMu.Unlock()
	if proc == nil {
		return nil
	}
	s := proc
	proc = nil
	s.worker.Stop()
	err := s.eng.Close()
	s.pinMu.Lock()
	s.pins = nil
	s.pinMu.Unlock()
	return err
}

// Collect forces a collection cycle. With the default engine this is the
// only point a cycle runs, so handles held in Go variables stay valid
// between Collect calls; anything that must survive a Collect needs a
// scannable reference first. A no-op when a cycle is already in progress.
func Collect() {
	ensure().eng.Collect()
}

// WaitForFinalizers blocks until every object queued so far has been
// finalized and its storage recycled.
func WaitForFinalizers() {
	ensure().queue.Wait()
}

// IsManagedAddress reports whether addr refers to a live heap block.
func IsManagedAddress(addr uintptr) bool {
	return ensure().eng.IsManagedAddress(addr &^ tagMask)
}

// pin keeps the boxed Go value behind an indirect block alive until the
// block is reclaimed.
func (s *runtimeState) pin(addr uintptr, v any) {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	if s.pins != nil {
		s.pins[addr] = v
	}
}

// unpin is the engine's reclaim hook; it drops the pin for addr, if any.
// Called with the engine lock held; never calls back into the engine.
func (s *runtimeState) unpin(addr uintptr) {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	if s.pins != nil {
		delete(s.pins, addr)
	}
}

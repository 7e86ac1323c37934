package gc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/tracegc/internal/trace"
)

// Handle tag bits. Block addresses are 8-byte aligned, leaving the low
// bits free; bit 0 marks an indirectly stored value.
const (
	indirectTag uintptr = 1 << 0
	tagMask     uintptr = indirectTag
)

// Ptr is a garbage-collected pointer to a value of type T.
//
// Ptr provides shared ownership: copies are cheap bitwise duplications,
// all referring to the same heap object. The object's lifetime is tracked
// by the collector: it is reclaimed some time after no reachable
// reference to it remains, never deterministically. Unlike counted shared
// pointers, cycles between Ptr values are collected without issue.
//
// The zero Ptr is nil; dereferencing it panics.
type Ptr[T any] struct {
	addr uintptr
}

// Finalizable marks value types with a destructor. When *T implements it,
// New registers Finalize to run exactly once after the object becomes
// unreachable. Finalize must not dereference managed Ptr fields of the
// value: a cyclic peer may already be finalized.
type Finalizable interface {
	Finalize()
}

// New allocates a managed object holding v and returns a handle to it.
// If *T implements Finalizable, the destructor is registered. New never
// fails except by panicking on true out-of-memory, matching host
// allocation-failure semantics.
func New[T any](v T) Ptr[T] {
	p := allocate[T](0)
	*p.Value() = v
	registerAutoFinalizer(p)
	return p
}

// NewWithFinalizer allocates a managed object holding v with an explicit
// destructor, for value types that cannot implement Finalizable.
func NewWithFinalizer[T any](v T, fin func(*T)) Ptr[T] {
	p := allocate[T](0)
	fp := p.Value()
	*fp = v
	if fin != nil {
		ensure().eng.RegisterFinalizer(p.base(), func() { fin(fp) })
	}
	return p
}

// NewUninit allocates zeroed managed storage of at least size bytes that
// the collector treats as a T. Useful for values with a custom layout
// larger than T. No destructor is registered until Initialize.
//
// Panics when size is smaller than T requires, or when T demands stricter
// alignment than the heap's 8 bytes.
func NewUninit[T any](size uintptr) Ptr[T] {
	info := infoFor(typeOf[T]())
	if size < info.size {
		panic(fmt.Sprintf("gc: requested size %d is smaller than %d required by the type", size, info.size))
	}
	return allocate[T](size)
}

// Initialize stores v into storage obtained from NewUninit and registers
// the destructor, if any. The object is fully live afterwards.
func (p Ptr[T]) Initialize(v T) {
	*p.Value() = v
	registerAutoFinalizer(p)
}

// Value dereferences the handle, yielding the contained value. The
// pointer stays valid while the handle is reachable from a scanned
// location (a root slot, another managed object, or Malloc memory); see
// the package documentation for the roots model.
func (p Ptr[T]) Value() *T {
	if p.addr == 0 {
		panic("gc: nil managed pointer dereference")
	}
	a := p.addr
	if a&indirectTag != 0 {
		a = *(*uintptr)(unsafe.Pointer(a &^ tagMask))
	}
	return (*T)(unsafe.Pointer(a)) //nolint:govet // heap blocks live outside the Go heap
}

// IsNil reports whether the handle is the zero Ptr.
func (p Ptr[T]) IsNil() bool { return p.addr == 0 }

// Eq reports whether two handles refer to the same heap object
// (identity, not value equality).
func Eq[T any](p, q Ptr[T]) bool { return p.addr == q.addr }

// Addr returns the raw handle word. An object referenced only by a raw
// word the collector cannot see may be reclaimed; keep a scannable
// reference alive for as long as the word is in use.
func (p Ptr[T]) Addr() uintptr { return p.addr }

// FromAddr reconstructs a handle from a raw word previously obtained via
// Addr. The word must originate from a Ptr of the same type.
func FromAddr[T any](addr uintptr) Ptr[T] { return Ptr[T]{addr: addr} }

// UnregisterFinalizer detaches the object's destructor; the storage is
// then recycled without it.
func (p Ptr[T]) UnregisterFinalizer() {
	if p.addr == 0 {
		return
	}
	ensure().eng.UnregisterFinalizer(p.base())
}

// String formats the contained value, so handles print like what they
// point at. Nil handles print as "gc.Ptr(nil)".
func (p Ptr[T]) String() string {
	if p.addr == 0 {
		return "gc.Ptr(nil)"
	}
	return fmt.Sprintf("%v", *p.Value())
}

// base returns the block address with tag bits stripped.
func (p Ptr[T]) base() uintptr { return p.addr &^ tagMask }

// allocate reserves storage for a T of at least size bytes (0 means the
// type's own size) and returns the zeroed handle.
func allocate[T any](size uintptr) Ptr[T] {
	info := infoFor(typeOf[T]())
	s := ensure()

	if info.indirect {
		// The value holds Go pointers: box it on the Go heap, pin the
		// box, and forward to it from the managed block.
		addr, err := s.eng.Allocate(trace.WordSize, info.desc)
		checkAlloc(err)
		box := new(T)
		*(*uintptr)(unsafe.Pointer(addr)) = uintptr(unsafe.Pointer(box))
		s.pin(addr, box)
		return Ptr[T]{addr: addr | indirectTag}
	}

	if info.align > trace.BlockAlignment {
		panic(fmt.Sprintf("gc: type alignment %d exceeds heap alignment %d", info.align, trace.BlockAlignment))
	}
	if size < info.size {
		size = info.size
	}
	addr, err := s.eng.Allocate(size, info.desc)
	checkAlloc(err)
	return Ptr[T]{addr: addr}
}

// registerAutoFinalizer registers the Finalizable destructor when *T
// implements it.
func registerAutoFinalizer[T any](p Ptr[T]) {
	var probe *T
	if _, ok := any(probe).(Finalizable); !ok {
		return
	}
	f := any(p.Value()).(Finalizable) //nolint:errcheck // checked above
	ensure().eng.RegisterFinalizer(p.base(), f.Finalize)
}

// checkAlloc turns an engine allocation failure into the fatal path.
func checkAlloc(err error) {
	if err != nil {
		panic(fmt.Errorf("gc: allocation failed: %w", err))
	}
}

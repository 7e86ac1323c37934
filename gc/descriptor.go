package gc

import (
	"reflect"
	"sync"

	"github.com/joshuapare/tracegc/internal/trace"
)

// LayoutKind selects how the collector scans a value's storage.
type LayoutKind uint8

const (
	// LayoutConservative scans every word of the value.
	LayoutConservative LayoutKind = iota

	// LayoutAtomic declares the value free of managed references; it is
	// never scanned.
	LayoutAtomic

	// LayoutPartial scans the value conservatively up to Words words;
	// everything past the boundary is known reference-free.
	LayoutPartial

	// LayoutPrecise scans exactly the words whose bitmap bit is set.
	LayoutPrecise
)

// Layout is the layout information a type can volunteer to the collector.
type Layout struct {
	Kind   LayoutKind
	Words  int    // trace boundary (Partial) or bitmap length (Precise)
	Bitmap uint64 // per-word reference bitmap (Precise)
}

// Layouter lets a type hand the collector more precise layout information
// than the conservative default, reducing scan work and over-retention.
//
// Incorrect layout information is unsound: declaring a word reference-free
// when it holds a live handle lets the collector miss it. The method is
// invoked on a zero value, so the layout must not depend on instance data.
// Types stored indirectly (containing Go pointers) ignore it.
type Layouter interface {
	GCLayout() Layout
}

// typeInfo caches per-type allocation decisions.
type typeInfo struct {
	size     uintptr          // value size in bytes
	align    uintptr          // value alignment requirement
	indirect bool             // value boxed on the Go heap, forwarded to
	desc     trace.Descriptor // scanner metadata for the block
}

var typeCache sync.Map // reflect.Type -> *typeInfo

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func infoFor(t reflect.Type) *typeInfo {
	if v, ok := typeCache.Load(t); ok {
		return v.(*typeInfo) //nolint:errcheck // cache holds only *typeInfo
	}
	info := buildInfo(t)
	actual, _ := typeCache.LoadOrStore(t, info)
	return actual.(*typeInfo) //nolint:errcheck // cache holds only *typeInfo
}

func buildInfo(t reflect.Type) *typeInfo {
	info := &typeInfo{
		size:  t.Size(),
		align: uintptr(t.Align()),
	}
	words := int((info.size + trace.WordSize - 1) / trace.WordSize)

	if hasGoPointers(t) {
		// The value cannot live outside the Go heap; box it and scan the
		// box through a forwarding word.
		info.indirect = true
		info.desc = trace.Descriptor{Kind: trace.Indirect, Words: words}
		return info
	}

	if l, ok := declaredLayout(t); ok {
		info.desc = layoutToDescriptor(l, words)
		return info
	}

	if !hasHandleWords(t) {
		// No word of the value can hold a handle: pointer-free data.
		info.desc = trace.Descriptor{Kind: trace.Atomic}
		return info
	}

	info.desc = trace.Descriptor{Kind: trace.Conservative}
	return info
}

// declaredLayout reports the Layouter layout of t, if implemented, probed
// on a zero value.
func declaredLayout(t reflect.Type) (Layout, bool) {
	layouterType := reflect.TypeOf((*Layouter)(nil)).Elem()
	switch {
	case t.Implements(layouterType):
		l := reflect.Zero(t).Interface().(Layouter) //nolint:errcheck // checked above
		return l.GCLayout(), true
	case reflect.PointerTo(t).Implements(layouterType):
		l := reflect.New(t).Interface().(Layouter) //nolint:errcheck // checked above
		return l.GCLayout(), true
	default:
		return Layout{}, false
	}
}

func layoutToDescriptor(l Layout, blockWords int) trace.Descriptor {
	switch l.Kind {
	case LayoutAtomic:
		return trace.Descriptor{Kind: trace.Atomic}
	case LayoutPartial:
		return trace.Descriptor{Kind: trace.Partial, Words: min(l.Words, blockWords)}
	case LayoutPrecise:
		return trace.Descriptor{Kind: trace.Precise, Words: min(l.Words, blockWords), Bitmap: l.Bitmap}
	default:
		return trace.Descriptor{Kind: trace.Conservative}
	}
}

// hasGoPointers reports whether values of t contain pointers the Go
// runtime owns. Such values must stay on the Go heap.
func hasGoPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice,
		reflect.String, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasGoPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasGoPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// hasHandleWords reports whether values of t contain any word that could
// hold a managed handle (a uintptr-typed field; Ptr is one). Types
// without such words are pointer-free and allocated atomically.
func hasHandleWords(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uintptr:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasHandleWords(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasHandleWords(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Package heap implements the managed two-space copying collector at
// the core of the runtime: tagged pointers, per-shape allocators, the
// Cheney scavenger, ephemeron (Hayes) finalization, weak arrays, the
// class table, and the become: identity-swap primitive.
//
// Grounded throughout on original_source/src/vm/heap.h and
// original_source/src/vm/object.h (the C++ VM this spec was distilled
// from), re-expressed as an arena-plus-offset model per spec.md §9's
// design guidance: "object references" are real addresses into one of
// two mmap'd semispaces (internal/platform.VirtualMemory), but nothing
// outside this package ever dereferences them as Go pointers — they are
// opaque Ref values inspected only through isSmallInt/isHeap/etc., as
// recommended ("the tag bit is not a vtable").
package heap

import "unsafe"

// wordSize is the machine word width this heap is built for. The VM
// targets 64-bit hosts only; see object.h's ARCH_IS_64_BIT branch,
// which this package follows exclusively (no 32-bit header layout).
const wordSize = 8

// objectAlignment is two words, per spec.md §3.1.
const objectAlignment = 2 * wordSize
const objectAlignmentLog2 = 4 // log2(16)
const objectAlignmentMask = objectAlignment - 1

// Ref is a tagged machine word: either a small integer or a heap
// pointer. It is deliberately opaque — callers must use IsSmallInt,
// IsHeap, SmallIntValue, and the heap's own accessors rather than
// treating it as a real pointer. See spec.md §9's tagged-pointer
// discipline note.
type Ref int64

// NilRef is the zero Ref. It is a valid small integer (0), not a null
// sentinel; the VM's nil object lives in the ObjectStore like any other
// root and is represented by an ordinary heap Ref.
const NilRef Ref = 0

// NewSmallInt tags v as an immediate integer. v must fit in
// [MinSmallInt, MaxSmallInt]; callers that need bigints allocate a
// MediumInteger or Bigint instead (spec.md §3.3).
func NewSmallInt(v int64) Ref {
	return Ref(v << 1)
}

// IsSmallInt reports whether r is a tagged immediate integer.
func (r Ref) IsSmallInt() bool { return r&1 == 0 }

// IsHeap reports whether r is a tagged heap pointer.
func (r Ref) IsHeap() bool { return r&1 == 1 }

// SmallIntValue returns the signed value of a small-integer Ref. The
// shift is arithmetic (Ref is a signed type), matching spec.md §3.1:
// "the value is the word arithmetically shifted right by one."
func (r Ref) SmallIntValue() int64 {
	return int64(r) >> 1
}

const (
	// MaxSmallInt is the largest representable small integer on a
	// 64-bit host: 2^(W-2)-1.
	MaxSmallInt int64 = 1<<(64-2) - 1
	// MinSmallInt is the smallest representable small integer: -2^(W-2).
	MinSmallInt int64 = -(1 << (64 - 2))
)

// FitsSmallInt reports whether v can be represented as a small integer.
func FitsSmallInt(v int64) bool {
	return v >= MinSmallInt && v <= MaxSmallInt
}

// heapAddr returns the address a heap Ref points at (header address),
// i.e. the tagged value minus the heap-object tag bit.
func (r Ref) heapAddr() uintptr {
	return uintptr(r) - 1
}

// refFromAddr tags a header address as a heap Ref. addr must be
// 2-word-aligned (objectAlignment), so OR-ing in the tag bit and
// subtracting it back out are equivalent and lossless.
func refFromAddr(addr uintptr) Ref {
	return Ref(addr | 1)
}

// addrToPtr reinterprets a raw address within a semispace's backing
// array as an unsafe.Pointer. Confined to this file and semispace.go so
// the rest of the package works only with Ref/offsets.
func addrToPtr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr) //nolint:govet // arena address, not a Go-managed pointer
}

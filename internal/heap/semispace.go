package heap

import (
	"unsafe"

	"github.com/nimbusvm/nimbusvm/internal/platform"
)

// zapByte and uninitByte are the debug poison fills used by the source
// (original_source/src/vm/heap.h's kZapByte / kUninitializedByte):
// zapByte overwrites a from-space object once it has been scavenged
// away, uninitByte fills freshly bumped-but-not-yet-written memory so
// that a client that forgets to initialize a field reads garbage
// loudly instead of a convenient zero.
const (
	zapByte      byte = 0xab
	uninitByte   byte = 0xcd
)

// semispace is a single, bump-pointer-allocated half of the heap's
// two-space arena. Grounded on original_source/src/vm/heap.h's Space
// class, backed by an mmap'd platform.VirtualMemory instead of the
// source's own OS-specific VirtualMemory.
type semispace struct {
	mem   *platform.VirtualMemory
	base  uintptr
	limit uintptr
	top   uintptr
	debug bool
}

func newSemispace(size int, debugZap bool) (*semispace, error) {
	mem, err := platform.AllocateVirtualMemory(size)
	if err != nil {
		return nil, err
	}
	base := uintptr(unsafe.Pointer(&mem.Bytes()[0]))
	s := &semispace{
		mem:   mem,
		base:  base,
		limit: base + uintptr(size),
		top:   base,
		debug: debugZap,
	}
	if debugZap {
		s.fill(base, s.limit, uninitByte)
	}
	return s, nil
}

func (s *semispace) size() int { return int(s.limit - s.base) }
func (s *semispace) used() int { return int(s.top - s.base) }

// reset rewinds the bump pointer to the start of the space, optionally
// poisoning the whole region so stale data can't masquerade as live
// objects (matches Space::Reset in the source's debug builds).
func (s *semispace) reset() {
	s.top = s.base
	if s.debug {
		s.fill(s.base, s.limit, uninitByte)
	}
}

func (s *semispace) zap(from, to uintptr) {
	if s.debug {
		s.fill(from, to, zapByte)
	}
}

func (s *semispace) fill(from, to uintptr, b byte) {
	n := int(to - from)
	if n <= 0 {
		return
	}
	buf := unsafe.Slice((*byte)(addrToPtr(from)), n)
	for i := range buf {
		buf[i] = b
	}
}

// tryAllocate bump-allocates nbytes (already rounded up to
// objectAlignment by the caller) and returns its base address, or
// ok=false if the space is exhausted.
func (s *semispace) tryAllocate(nbytes int) (addr uintptr, ok bool) {
	next := s.top + uintptr(nbytes)
	if next > s.limit {
		return 0, false
	}
	addr = s.top
	s.top = next
	if s.debug {
		s.fill(addr+uintptr(2*wordSize), next, uninitByte)
	}
	return addr, true
}

func (s *semispace) contains(addr uintptr) bool {
	return addr >= s.base && addr < s.top
}

func (s *semispace) free() error {
	if s.mem == nil {
		return nil
	}
	err := s.mem.Free()
	s.mem = nil
	return err
}

// roundUpToAlignment rounds n up to the nearest multiple of
// objectAlignment.
func roundUpToAlignment(n int) int {
	return (n + objectAlignmentMask) &^ objectAlignmentMask
}

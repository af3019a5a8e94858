package heap

import "unsafe"

// Header bit positions, grounded verbatim on
// original_source/src/vm/object.h's HeaderBits enum (ARCH_IS_64_BIT
// branch) and spec.md §3.2's table.
const (
	markBit             = 0
	rememberedBit        = 1 // reserved, unused (no remembered set; see spec.md §1 Non-goals)
	canonicalBit         = 2
	inClassTableBit      = 3 // reserved, unused
	watchedBit           = 4 // reserved, unused
	shallowImmutableBit  = 5 // reserved, unused
	deepImmutableBit     = 6 // reserved, unused

	sizeFieldOffset    = 16
	sizeFieldBits      = 16
	classIDFieldOffset = 32
	classIDFieldBits   = 32

	sizeFieldMask    = uint64(1)<<sizeFieldBits - 1
	classIDFieldMask = uint64(1)<<classIDFieldBits - 1
)

// header is the first word of every heap object: flags, a size tag
// (object size >> alignment-log2, 0 meaning "consult the class"), and
// a class id. See spec.md §3.2.
type header uint64

func makeHeader(classID int32, sizeTag uint16) header {
	h := uint64(classID) << classIDFieldOffset
	h |= uint64(sizeTag) << sizeFieldOffset
	return header(h)
}

func (h header) classID() int32 {
	return int32((uint64(h) >> classIDFieldOffset) & classIDFieldMask)
}

func (h header) withClassID(cid int32) header {
	cleared := uint64(h) &^ (classIDFieldMask << classIDFieldOffset)
	return header(cleared | (uint64(uint32(cid)) << classIDFieldOffset))
}

func (h header) sizeTag() uint16 {
	return uint16((uint64(h) >> sizeFieldOffset) & sizeFieldMask)
}

func (h header) withSizeTag(tag uint16) header {
	cleared := uint64(h) &^ (sizeFieldMask << sizeFieldOffset)
	return header(cleared | (uint64(tag) << sizeFieldOffset))
}

func (h header) bit(pos uint) bool {
	return uint64(h)&(1<<pos) != 0
}

func (h header) withBit(pos uint, v bool) header {
	if v {
		return header(uint64(h) | (1 << pos))
	}
	return header(uint64(h) &^ (1 << pos))
}

func (h header) marked() bool          { return h.bit(markBit) }
func (h header) withMarked(v bool) header { return h.withBit(markBit, v) }
func (h header) canonical() bool       { return h.bit(canonicalBit) }
func (h header) withCanonical(v bool) header { return h.withBit(canonicalBit, v) }

// sizeTagToBytes converts a non-zero size tag back into a byte count.
func sizeTagToBytes(tag uint16) int {
	return int(tag) << objectAlignmentLog2
}

// bytesToSizeTag converts an alignment-rounded byte count into a size
// tag, returning ok=false if it overflows the field (the caller must
// then fall back to "consult the class", size tag 0).
func bytesToSizeTag(size int) (tag uint16, ok bool) {
	v := size >> objectAlignmentLog2
	if v <= 0 || v > int(sizeFieldMask) {
		return 0, false
	}
	return uint16(v), true
}

// objectLayout is the fixed two-word prefix of every heap object:
// header then identity hash, matching object.h's header_/identity_hash_
// fields.
type objectLayout struct {
	header header
	hash   uint64
}

func wordAt(addr uintptr, index int) *uint64 {
	return (*uint64)(addrToPtr(addr + uintptr(index*wordSize)))
}

func headerAt(addr uintptr) *header {
	return (*header)(unsafe.Pointer(wordAt(addr, 0)))
}

func hashAt(addr uintptr) *uint64 {
	return wordAt(addr, 1)
}

// bytesSliceAt exposes n raw bytes starting byteOffset past addr.
func bytesSliceAt(addr uintptr, byteOffset, n int) []byte {
	return unsafe.Slice((*byte)(addrToPtr(addr+uintptr(byteOffset))), n)
}

// uint16At returns a pointer to a uint16 at byteOffset past addr, used
// for packed wide-string code units.
func uint16At(addr uintptr, byteOffset int) *uint16 {
	return (*uint16)(addrToPtr(addr + uintptr(byteOffset)))
}

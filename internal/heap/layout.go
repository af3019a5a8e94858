package heap

// Fixed word offsets for each built-in shape. Every object starts with
// header (word 0) and identity hash (word 1); the offsets below are
// relative to an object's base address in words.
const (
	wHeader = 0
	wHash   = 1

	// wFixedFieldsStart is where a regular object's instance fields
	// begin; it's numerically identical to wArrayLength below (both
	// shapes start their variable part right after header+hash), kept
	// as a separate name so call sites read correctly for each shape.
	wFixedFieldsStart = 2

	// Array, WeakArray: length (element count), then Ref elements.
	wArrayLength = 2
	wArrayStart  = 3

	// ByteArray, ByteString: length (byte count), then packed bytes.
	wBytesLength = 2
	wBytesStart  = 3

	// WideString: length (UTF-16 code unit count), then packed units.
	wWideLength = 2
	wWideStart  = 3

	// MediumInteger: a single raw int64 value (not a Ref).
	wIntValue = 2

	// Float64: a single raw float64 bit pattern (not a Ref).
	wFloatValue = 2

	// Bigint: digit count shifted left one with the sign in bit 0, then
	// raw uint64 digits (little-endian limbs).
	wBigintLength = 2
	wBigintStart  = 3

	// Ephemeron: key, value, finalizer. All Refs.
	wEphemeronKey       = 2
	wEphemeronValue     = 3
	wEphemeronFinalizer = 4

	// Closure: function, then captured-count, then Ref elements.
	wClosureFunction = 2
	wClosureLength   = 3
	wClosureStart    = 4

	// Activation: method, receiver, sender, pc (smallint Ref), then
	// local-count, then Ref elements.
	wActivationMethod   = 2
	wActivationReceiver = 3
	wActivationSender   = 4
	wActivationPC       = 5
	wActivationLength   = 6
	wActivationStart    = 7
)

// sizeOfObject returns an object's total size in bytes, alignment
// rounded, given its header and base address. Every shape carries its
// size in the header's size tag when that size fits the tag; objects
// too large for it have size tag 0, the "consult the length word"
// sentinel, and are sized from their length word (or, for regular
// objects, their class's field count) instead (spec.md §3.2).
func (h *Heap) sizeOfObject(hdr header, addr uintptr) int {
	if tag := hdr.sizeTag(); tag != 0 {
		return sizeTagToBytes(tag)
	}
	cid := hdr.classID()
	switch cid {
	case cidByteArray, cidByteString:
		n := int(*wordAt(addr, wBytesLength))
		return roundUpToAlignment(wBytesStart*wordSize + n)
	case cidWideString:
		n := int(*wordAt(addr, wWideLength))
		return roundUpToAlignment(wWideStart*wordSize + n*2)
	case cidArray, cidWeakArray:
		n := int(*wordAt(addr, wArrayLength))
		return roundUpToAlignment(wArrayStart*wordSize + n*wordSize)
	case cidBigint:
		n := int(*wordAt(addr, wBigintLength) >> 1)
		return roundUpToAlignment(wBigintStart*wordSize + n*wordSize)
	case cidClosure:
		n := int(*wordAt(addr, wClosureLength))
		return roundUpToAlignment(wClosureStart*wordSize + n*wordSize)
	case cidActivation:
		n := int(*wordAt(addr, wActivationLength))
		return roundUpToAlignment(wActivationStart*wordSize + n*wordSize)
	default:
		n := h.classes.instanceFieldCount(cid)
		return roundUpToAlignment((wFixedFieldsStart+n)*wordSize)
	}
}

// forEachRefField invokes fn for every word holding a Ref within the
// object at addr with header hdr, so the scavenger can forward exactly
// the slots that are references (and not, say, a MediumInteger's raw
// payload or a ByteArray's packed bytes). Ephemeron fields are
// deliberately excluded here: ephemeron.go walks them with its own,
// weaker-than-normal forwarding rules.
func (h *Heap) forEachRefField(hdr header, addr uintptr, fn func(addr uintptr, word int)) {
	cid := hdr.classID()
	switch cid {
	case cidMediumInteger, cidFloat64, cidByteArray, cidByteString, cidWideString, cidBigint, cidEphemeron:
		// No Ref fields (ephemerons are handled specially; the rest carry
		// only raw payloads).
	case cidArray, cidWeakArray:
		if cid == cidWeakArray {
			// Weak arrays are never strongly scanned; weak.go nils
			// slots whose targets didn't survive after the fact.
			return
		}
		n := int(*wordAt(addr, wArrayLength))
		for i := 0; i < n; i++ {
			fn(addr, wArrayStart+i)
		}
	case cidClosure:
		fn(addr, wClosureFunction)
		n := int(*wordAt(addr, wClosureLength))
		for i := 0; i < n; i++ {
			fn(addr, wClosureStart+i)
		}
	case cidActivation:
		fn(addr, wActivationMethod)
		fn(addr, wActivationReceiver)
		fn(addr, wActivationSender)
		fn(addr, wActivationPC)
		n := int(*wordAt(addr, wActivationLength))
		for i := 0; i < n; i++ {
			fn(addr, wActivationStart+i)
		}
	default:
		n := h.classes.instanceFieldCount(cid)
		for i := 0; i < n; i++ {
			fn(addr, wFixedFieldsStart+i)
		}
	}
}

package heap

// Reserved class ids, grounded verbatim on original_source/src/vm/object.h's
// ClassIds enum. Ids below firstRegularObjectCid name built-in shapes
// the allocators in alloc.go produce directly; ids at or above it are
// handed out by the class table (classtable.go) for ordinary,
// non-indexable "regular objects."
const (
	cidIllegal         int32 = 0
	cidForwardingCorpse int32 = 1
	cidFreeListElement  int32 = 2
	cidSmallInteger     int32 = 3
	cidMediumInteger    int32 = 4
	cidBigint           int32 = 5
	cidFloat64          int32 = 6
	cidByteArray        int32 = 7
	cidByteString       int32 = 8
	cidWideString       int32 = 9
	cidArray            int32 = 10
	cidWeakArray        int32 = 11
	cidEphemeron        int32 = 12
	cidActivation       int32 = 13
	cidClosure          int32 = 14

	firstRegularObjectCid int32 = 15
)

// isForwardingCorpse reports whether h's class id marks it as a
// forwarding corpse left behind by a scavenge or become: swap.
func isForwardingCorpse(h header) bool {
	return h.classID() == cidForwardingCorpse
}

// isIndexable reports whether objects of cid carry a variable-length
// element region after their fixed fields (arrays, strings, weak
// arrays).
func isIndexable(cid int32) bool {
	switch cid {
	case cidByteArray, cidByteString, cidWideString, cidArray, cidWeakArray:
		return true
	default:
		return false
	}
}

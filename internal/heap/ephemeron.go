package heap

// Ephemeron resolution implements Barry Hayes' finalization semantics
// (spec.md §4.1.6, and the deferred-finalizer queue supplemented
// feature in SPEC_FULL.md §4): an ephemeron's value and finalizer are kept alive
// only once its key is known to be reachable by some path that doesn't
// go through the ephemeron itself. Because that can depend on objects
// discovered later in the same scavenge (including other ephemerons'
// values), resolution runs to a fixed point interleaved with the main
// Cheney scan in Scavenge.

// resolveEphemerons attempts to resolve each pending ephemeron's key.
// A key resolves when it's a small integer (always "live"), already
// copied to to-space independently, or a from-space object that's
// since picked up a forwarding corpse. Resolved ephemerons have their
// value and finalizer forwarded (possibly discovering new live
// objects, which is why the caller loops until a full pass makes no
// progress). Returns whether any progress was made this pass, and the
// ephemerons still unresolved.
func (h *Heap) resolveEphemerons(from, to *semispace, forward func(Ref) Ref, pending []uintptr) (bool, []uintptr) {
	if len(pending) == 0 {
		return false, pending
	}
	progressed := false
	remaining := pending[:0]
	for _, addr := range pending {
		key := refWordAt(addr, wEphemeronKey)
		if resolved, newKey := resolveEphemeronKey(key, from, to); resolved {
			setRefWordAt(addr, wEphemeronKey, newKey)
			setRefWordAt(addr, wEphemeronValue, forward(refWordAt(addr, wEphemeronValue)))
			setRefWordAt(addr, wEphemeronFinalizer, forward(refWordAt(addr, wEphemeronFinalizer)))
			progressed = true
		} else {
			remaining = append(remaining, addr)
		}
	}
	return progressed, remaining
}

// resolveEphemeronKey reports whether key is already known-live, and
// if so, its (possibly forwarded) value.
func resolveEphemeronKey(key Ref, from, to *semispace) (bool, Ref) {
	if key.IsSmallInt() {
		return true, key
	}
	addr := key.heapAddr()
	if to.contains(addr) {
		return true, key
	}
	if from.contains(addr) {
		hdr := *headerAt(addr)
		if isForwardingCorpse(hdr) {
			return true, refWordAt(addr, wHash)
		}
		return false, key
	}
	// Not in either space: foreign to this heap, treat as live (can't
	// collect what we don't own).
	return true, key
}

// mournEphemerons runs once the fixed point is reached: every ephemeron
// still in pending has a dead key. All three fields are nilled per
// spec.md §4.1.6, and a non-nil finalizer is queued for the isolate to
// run later (never synchronously inside the scavenge).
func (h *Heap) mournEphemerons(pending []uintptr) {
	for _, addr := range pending {
		finalizer := refWordAt(addr, wEphemeronFinalizer)
		setRefWordAt(addr, wEphemeronKey, NilRef)
		setRefWordAt(addr, wEphemeronValue, NilRef)
		setRefWordAt(addr, wEphemeronFinalizer, NilRef)
		if finalizer != NilRef {
			h.finalizerQueue = append(h.finalizerQueue, finalizer)
		}
	}
}

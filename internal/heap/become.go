package heap

// Become performs the become: identity-swap primitive (spec.md
// §4.1.7): every live reference to oldRefs[i] is rewritten, in place,
// to refer to whatever newRefs[i] currently denotes, and vice versa,
// for every i.
//
// The swap piggybacks on the same copying scan Scavenge runs: a dummy
// copy of each operand's content is seeded into the survivor space up
// front (old[i]'s dummy holds neu[i]'s content, and neu[i]'s dummy
// holds old[i]'s content), then each operand's own header, still in
// the active space, is overwritten with a forwarding corpse pointing
// at its partner's dummy. The normal root-plus-active-space scan that
// follows resolves every reference the same way Scavenge resolves a
// moved object: by chasing the corpse to its forwarding target. That
// scan also walks the dummies themselves, so a field on either operand
// that points back at the other (or at a different become'd pair)
// still resolves correctly. Once the scan completes the two spaces are
// swapped, exactly as Scavenge swaps them, so no corpse survives into
// the next Become or Scavenge call: a later call that reverses the
// same pair starts from a heap with fresh, non-corpse headers at
// whatever addresses the reversed operands now live at.
//
// roots is rewritten in place and also returned, mirroring Scavenge's
// calling convention for external references the heap doesn't own.
func (h *Heap) Become(oldRefs, newRefs []Ref, roots []Ref) ([]Ref, error) {
	if len(oldRefs) != len(newRefs) {
		return roots, &BecomeError{Msg: "oldRefs and newRefs must have equal length"}
	}

	seen := make(map[Ref]bool, 2*len(oldRefs))
	for i := range oldRefs {
		if !oldRefs[i].IsHeap() || !newRefs[i].IsHeap() {
			return roots, &BecomeError{Msg: "become: operands must be heap references"}
		}
		if oldRefs[i] == newRefs[i] || seen[oldRefs[i]] || seen[newRefs[i]] {
			return roots, &BecomeError{Msg: "become: operands must be pairwise distinct across both arrays"}
		}
		seen[oldRefs[i]] = true
		seen[newRefs[i]] = true
	}

	from, to := h.active, h.survivor
	to.reset()

	// Step 2: allocate both dummies for every pair before touching any
	// original header, so a mid-batch allocation failure leaves the
	// heap untouched, per "if the heap cannot allocate the dummies,
	// return false without mutating state."
	type pairDummies struct {
		oldAddr, newAddr         uintptr
		oldHdr, newHdr           header
		dummyForOld, dummyForNew uintptr
	}
	dummies := make([]pairDummies, len(oldRefs))
	for i := range oldRefs {
		oldAddr, newAddr := oldRefs[i].heapAddr(), newRefs[i].heapAddr()
		oldHdr, newHdr := *headerAt(oldAddr), *headerAt(newAddr)
		oldSize, newSize := h.sizeOfObject(oldHdr, oldAddr), h.sizeOfObject(newHdr, newAddr)

		dummyForOld, ok := to.tryAllocate(newSize) // will carry neu[i]'s content
		if !ok {
			to.reset()
			return roots, &BecomeError{Msg: "become: heap exhausted allocating dummies"}
		}
		copyWords(newAddr, dummyForOld, newSize)

		dummyForNew, ok := to.tryAllocate(oldSize) // will carry old[i]'s content
		if !ok {
			to.reset()
			return roots, &BecomeError{Msg: "become: heap exhausted allocating dummies"}
		}
		copyWords(oldAddr, dummyForNew, oldSize)

		dummies[i] = pairDummies{oldAddr, newAddr, oldHdr, newHdr, dummyForOld, dummyForNew}
	}

	// Step 3: overwrite each original header with a forwarding corpse
	// pointing to its partner's dummy, old→neu and neu→old.
	for _, d := range dummies {
		*headerAt(d.oldAddr) = d.oldHdr.withClassID(cidForwardingCorpse)
		setRefWordAt(d.oldAddr, wHash, refFromAddr(d.dummyForOld))
		*headerAt(d.newAddr) = d.newHdr.withClassID(cidForwardingCorpse)
		setRefWordAt(d.newAddr, wHash, refFromAddr(d.dummyForNew))
	}

	h.gcCount++
	scan := to.base

	forward := func(r Ref) Ref {
		if r.IsSmallInt() {
			return r
		}
		addr := r.heapAddr()
		if !from.contains(addr) {
			// Already in to-space (a dummy, or a root visited twice) or
			// foreign to this heap entirely.
			return r
		}
		hdr := *headerAt(addr)
		if isForwardingCorpse(hdr) {
			return refWordAt(addr, wHash)
		}
		size := h.sizeOfObject(hdr, addr)
		newAddr, ok := to.tryAllocate(size)
		if !ok {
			panic(fatalf("Become", "survivor space exhausted mid-become"))
		}
		copyWords(addr, newAddr, size)
		newRef := refFromAddr(newAddr)
		*headerAt(addr) = hdr.withClassID(cidForwardingCorpse)
		setRefWordAt(addr, wHash, newRef)
		if size > 2*wordSize {
			from.zap(addr+2*wordSize, addr+uintptr(size))
		}
		h.classes.noteLive(hdr.classID())
		return newRef
	}

	// Step 4: the normal root-plus-to-space scan, which follows
	// forwarding corpses; because every live object other than the
	// corpses ends up copied into to-space, this rewrites every
	// reference, including the ones inside the dummies themselves.
	h.updateHandleRoots(forward)
	for i := range roots {
		roots[i] = forward(roots[i])
	}
	h.classes.forwardClassRoots(forward)

	var pending []uintptr    // to-space addresses of live, unresolved ephemerons
	var weakArrays []uintptr // to-space addresses of live weak arrays, resolved last

	for {
		for scan < to.top {
			hdr := *headerAt(scan)
			size := h.sizeOfObject(hdr, scan)
			switch hdr.classID() {
			case cidEphemeron:
				pending = append(pending, scan)
			case cidWeakArray:
				weakArrays = append(weakArrays, scan)
			default:
				scanAddr := scan
				h.forEachRefField(hdr, scanAddr, func(objAddr uintptr, word int) {
					*wordAt(objAddr, word) = uint64(forward(refWordAt(objAddr, word)))
				})
			}
			scan += uintptr(size)
		}
		progressed, remaining := h.resolveEphemerons(from, to, forward, pending)
		pending = remaining
		if scan >= to.top && !progressed {
			break
		}
	}

	// Step 5: the dummies were populated by copyWords straight from a
	// live, non-corpse object, so they already carry real headers;
	// there is nothing left to reinstall once the scan above has
	// chased every reference to them.
	h.mournEphemerons(pending)
	h.nilDeadWeakSlots(from, to, weakArrays)
	h.classes.sweepUnmarked()

	h.active, h.survivor = to, from
	from.zap(from.base, from.top)

	return roots, nil
}

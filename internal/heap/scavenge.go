package heap

import "unsafe"

// Scavenge runs one Cheney-style copying collection: every handle,
// every externally supplied root in extraRoots, and (transitively)
// everything reachable from them is copied from the active semispace
// into the survivor space; the two spaces are then swapped. The old
// active space is zap-poisoned in debug builds, and its allocation top
// is reset when it next serves as the copy destination. Returns
// extraRoots updated in place to their new locations.
//
// Ephemeron resolution (ephemeron.go) runs to a fixed point interleaved
// with the scan, and weak-array nilling (weak.go) runs once after that
// fixed point, both as part of the same pass, matching the
// interleaving the source's Scavenger::Scavenge/ScavengeEphemerons
// split describes conceptually, collapsed here into one method since
// this package has no separate "process" object.
func (h *Heap) Scavenge(extraRoots []Ref) []Ref {
	h.gcCount++
	from, to := h.active, h.survivor
	to.reset()
	scan := to.base

	forward := func(r Ref) Ref {
		if r.IsSmallInt() {
			return r
		}
		addr := r.heapAddr()
		if !from.contains(addr) {
			// Already in to-space (e.g. a root visited twice) or foreign
			// to this heap entirely.
			return r
		}
		hdr := *headerAt(addr)
		if isForwardingCorpse(hdr) {
			return refWordAt(addr, wHash)
		}
		size := h.sizeOfObject(hdr, addr)
		newAddr, ok := to.tryAllocate(size)
		if !ok {
			panic(fatalf("Scavenge", "survivor space exhausted mid-scavenge"))
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

	h.updateHandleRoots(forward)
	for i := range extraRoots {
		extraRoots[i] = forward(extraRoots[i])
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

	h.mournEphemerons(pending)
	h.nilDeadWeakSlots(from, to, weakArrays)
	h.classes.sweepUnmarked()

	h.active, h.survivor = to, from
	from.zap(from.base, from.top)

	return extraRoots
}

func copyWords(src, dst uintptr, nbytes int) {
	n := nbytes / wordSize
	s := unsafe.Slice((*uint64)(addrToPtr(src)), n)
	d := unsafe.Slice((*uint64)(addrToPtr(dst)), n)
	copy(d, s)
}

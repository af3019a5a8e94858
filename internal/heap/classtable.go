package heap

// classInfo is the fixed-shape metadata the heap needs about a
// user-defined ("regular object") class: how many Ref-typed instance
// fields each instance carries. Everything else about a class (method
// dictionary, superclass, name) belongs to the interpreter, not the
// heap; classTable only tracks what's needed to size and scavenge
// instances.
type classInfo struct {
	numFields int
	marked    bool // used only in weak mode, during scavenge

	// classObj is the heap Ref of the interpreter-level Class object
	// registered for this id via RegisterClass, if any. hasClassObj
	// distinguishes "never registered" from "registered as NilRef",
	// since NilRef is itself a valid small integer, not a sentinel.
	classObj    Ref
	hasClassObj bool
}

// classTable maps class ids (>= firstRegularObjectCid) to classInfo.
// It operates in one of two modes, a build-time choice (WithWeakClassTable):
//
//   - strong (default): every registered class is a permanent GC root;
//     ids are never recycled.
//   - weak: a class survives a scavenge only if some live object
//     references it (directly, as its own class, or transitively
//     through another live class as a superclass pointer — the
//     simplified model here only tracks "is any instance of this class
//     still alive," since superclass chains live in the interpreter's
//     own object graph, not this table); unreferenced ids are returned
//     to a free list for reuse.
//
// See spec.md §5's Open Question and DESIGN.md for the rationale.
type classTable struct {
	weak    bool
	byID    map[int32]*classInfo
	nextID  int32
	freeIDs []int32
}

func newClassTable(weak bool) *classTable {
	return &classTable{
		weak:   weak,
		byID:   make(map[int32]*classInfo),
		nextID: firstRegularObjectCid,
	}
}

// AllocateClassID reserves a class id for a new class with numFields
// Ref-typed instance fields, reusing a freed id in weak mode when one
// is available.
func (t *classTable) AllocateClassID(numFields int) int32 {
	var id int32
	if t.weak && len(t.freeIDs) > 0 {
		id = t.freeIDs[len(t.freeIDs)-1]
		t.freeIDs = t.freeIDs[:len(t.freeIDs)-1]
	} else {
		id = t.nextID
		t.nextID++
	}
	t.byID[id] = &classInfo{numFields: numFields}
	return id
}

func (t *classTable) instanceFieldCount(cid int32) int {
	info, ok := t.byID[cid]
	if !ok {
		return 0
	}
	return info.numFields
}

// noteLive marks cid as referenced by a surviving instance, relevant
// only in weak mode.
func (t *classTable) noteLive(cid int32) {
	if !t.weak {
		return
	}
	if info, ok := t.byID[cid]; ok {
		info.marked = true
	}
}

// sweepUnmarked runs after a scavenge's main copy phase in weak mode:
// any class id with no live instance seen this cycle is freed and its
// id returned to the free list. A no-op in strong mode.
func (t *classTable) sweepUnmarked() {
	if !t.weak {
		return
	}
	for id, info := range t.byID {
		if info.marked {
			info.marked = false
			continue
		}
		delete(t.byID, id)
		t.freeIDs = append(t.freeIDs, id)
	}
}

func (t *classTable) count() int {
	return len(t.byID)
}

// registerClass records classObj as the Class object for cid, per
// spec.md §6.4's RegisterClass. A no-op if cid was never allocated.
func (t *classTable) registerClass(cid int32, classObj Ref) {
	if info, ok := t.byID[cid]; ok {
		info.classObj = classObj
		info.hasClassObj = true
	}
}

// classAt returns the Class object registered for cid, or NilRef if
// none has been registered (or cid is unknown), per spec.md §6.4's
// ClassAt.
func (t *classTable) classAt(cid int32) Ref {
	if info, ok := t.byID[cid]; ok {
		return info.classObj
	}
	return NilRef
}

// forwardClassRoots forwards every registered Class object through
// forward, keeping ClassAt's answers valid after a scavenge moves
// objects. Registered class objects are roots regardless of weak/strong
// mode: classTable's weak/strong setting only governs reuse of class
// *ids* once their instances die, a separate concern from whether the
// Class object describing them stays reachable (nothing in an ordinary
// instance's header points back at it, so without this it would be
// collected out from under ClassAt even while instances of its id are
// still alive).
func (t *classTable) forwardClassRoots(forward func(Ref) Ref) {
	for _, info := range t.byID {
		if info.hasClassObj {
			info.classObj = forward(info.classObj)
		}
	}
}

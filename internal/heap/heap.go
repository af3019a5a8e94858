package heap

import (
	"github.com/nimbusvm/nimbusvm/internal/platform"
	"github.com/nimbusvm/nimbusvm/internal/vmlog"
)

// Heap is a two-space copying collector instance. One Heap belongs to
// exactly one isolate (spec.md §5: "Heap: per-isolate"); nothing here
// is safe to share across goroutines without external synchronization,
// matching the interpreter's single-threaded-per-isolate execution
// model.
type Heap struct {
	active, survivor *semispace
	maxSize          int
	debugZap         bool

	classes *classTable
	random  *platform.Random

	handles    []Ref
	scopeDepth int

	// finalizerQueue holds the non-nil finalizers of ephemerons whose
	// key died this scavenge. Per spec.md §5's Open Question
	// decision, finalizers are never run synchronously inside a
	// scavenge; the isolate drains this queue between messages (spec.md
	// §4.2's "finalizer epilogue" supplemented feature).
	finalizerQueue []Ref

	gcCount int
}

// New constructs a Heap with two semispaces of the configured initial
// size. Grounded on original_source/src/vm/heap.cc's Heap::Heap.
func New(opts ...Option) (*Heap, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	active, err := newSemispace(cfg.initialSize, cfg.debugZap)
	if err != nil {
		return nil, err
	}
	survivor, err := newSemispace(cfg.initialSize, cfg.debugZap)
	if err != nil {
		active.free() //nolint:errcheck
		return nil, err
	}
	return &Heap{
		active:   active,
		survivor: survivor,
		maxSize:  cfg.maxSize,
		debugZap: cfg.debugZap,
		classes:  newClassTable(cfg.weakClasses),
		random:   platform.NewRandom(),
	}, nil
}

// Close releases both semispaces. The Heap must not be used afterward.
func (h *Heap) Close() error {
	err1 := h.active.free()
	err2 := h.survivor.free()
	if err1 != nil {
		return err1
	}
	return err2
}

// Used reports bytes currently occupied in the active semispace.
func (h *Heap) Used() int { return h.active.used() }

// Capacity reports the active semispace's total size.
func (h *Heap) Capacity() int { return h.active.size() }

// refWordAt reads word index i of the object at addr as a Ref.
func refWordAt(addr uintptr, i int) Ref {
	return Ref(*wordAt(addr, i))
}

func setRefWordAt(addr uintptr, i int, v Ref) {
	*wordAt(addr, i) = uint64(v)
}

// allocate bump-allocates nbytes in the active semispace, triggering a
// scavenge (passing extraRoots through so the caller's external
// references get fixed up) if the space is full, and growing both
// semispaces if even a freshly scavenged space can't satisfy the
// request. Returns the new object's base address.
func (h *Heap) allocate(nbytes int, extraRoots []Ref) (addr uintptr, newRoots []Ref, err error) {
	nbytes = roundUpToAlignment(nbytes)
	if addr, ok := h.active.tryAllocate(nbytes); ok {
		return addr, extraRoots, nil
	}
	extraRoots = h.Scavenge(extraRoots)
	if addr, ok := h.active.tryAllocate(nbytes); ok {
		return addr, extraRoots, nil
	}
	extraRoots, err = h.grow(nbytes, extraRoots)
	if err != nil {
		return 0, extraRoots, err
	}
	addr, ok := h.active.tryAllocate(nbytes)
	if !ok {
		return 0, extraRoots, fatalf("allocate", "allocation of %d bytes failed after growth", nbytes)
	}
	return addr, extraRoots, nil
}

// grow doubles both semispaces (up to maxSize) until one can fit
// nbytes, matching heap.cc's growth policy: growth happens to both
// spaces together, since a scavenge always needs a same-sized
// destination to copy into.
func (h *Heap) grow(nbytes int, roots []Ref) ([]Ref, error) {
	newSize := 2 * h.active.size()
	for newSize < h.active.used()+nbytes {
		newSize *= 2
	}
	if newSize > h.maxSize {
		return roots, fatalf("grow", "semispace size %d exceeds max %d", newSize, h.maxSize)
	}
	newActive, err := newSemispace(newSize, h.debugZap)
	if err != nil {
		return roots, err
	}
	newSurvivor, err := newSemispace(newSize, h.debugZap)
	if err != nil {
		newActive.free() //nolint:errcheck
		return roots, err
	}
	// Copy live data by scavenging the old active space straight into
	// the freshly sized destination, then discard the old pair.
	oldActive, oldSurvivor := h.active, h.survivor
	h.active, h.survivor = oldActive, newSurvivor
	roots = h.Scavenge(roots)
	h.survivor = newActive
	vmlog.Info(vmlog.CategoryHeap, "grew semispaces", map[string]any{
		"old_size": oldActive.size(),
		"new_size": newSize,
	})
	oldActive.free()   //nolint:errcheck
	oldSurvivor.free() //nolint:errcheck
	return roots, nil
}

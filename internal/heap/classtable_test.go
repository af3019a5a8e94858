package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateClassIDThenAllocateRegularObject(t *testing.T) {
	h := newTestHeap(t)
	cid := h.AllocateClassID(2)

	ref, roots, err := h.AllocateRegularObject(cid, nil)
	require.NoError(t, err)
	require.True(t, ref.IsHeap())
	_ = roots
}

func TestRegisterClassThenClassAt(t *testing.T) {
	h := newTestHeap(t)
	cid := h.AllocateClassID(0)

	classObj, _, err := h.AllocateArray(1, nil)
	require.NoError(t, err)

	require.Equal(t, NilRef, h.ClassAt(cid), "unregistered class id must answer NilRef")

	h.RegisterClass(cid, classObj)
	require.Equal(t, classObj, h.ClassAt(cid))
}

func TestClassAtOfUnknownIDIsNilRef(t *testing.T) {
	h := newTestHeap(t)
	require.Equal(t, NilRef, h.ClassAt(999))
}

// TestScavengeForwardsRegisteredClassObject exercises the open question
// resolved in DESIGN.md: a registered Class object keeps answering from
// ClassAt with a valid Ref after a scavenge moves it, even though
// nothing in an instance's header points back at it.
func TestScavengeForwardsRegisteredClassObject(t *testing.T) {
	h := newTestHeap(t, WithDebugZapping(true))
	cid := h.AllocateClassID(1)

	classObj, roots, err := h.AllocateArray(1, nil)
	require.NoError(t, err)
	h.RegisterClass(cid, classObj)

	instance, roots, err := h.AllocateRegularObject(cid, roots)
	require.NoError(t, err)
	roots = append(roots, instance)

	roots = h.Scavenge(roots)
	instance = roots[len(roots)-1]

	require.True(t, instance.IsHeap())
	moved := h.ClassAt(cid)
	require.True(t, moved.IsHeap())
	require.NotEqual(t, NilRef, moved)
}

func TestWeakClassTableReusesIDAfterInstancesDie(t *testing.T) {
	h := newTestHeap(t, WithWeakClassTable(true))
	cid := h.AllocateClassID(0)

	_, _, err := h.AllocateRegularObject(cid, nil)
	require.NoError(t, err)

	h.Scavenge(nil) // no roots kept: the instance dies, cid becomes reclaimable

	reused := h.AllocateClassID(0)
	require.Equal(t, cid, reused, "weak class table should recycle the freed id")
}

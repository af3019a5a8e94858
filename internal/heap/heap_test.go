package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHeap(t *testing.T, opts ...Option) *Heap {
	t.Helper()
	h, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestSmallIntRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1234567, MaxSmallInt, MinSmallInt} {
		r := NewSmallInt(v)
		require.True(t, r.IsSmallInt())
		require.False(t, r.IsHeap())
		require.Equal(t, v, r.SmallIntValue())
	}
}

func TestFitsSmallInt(t *testing.T) {
	require.True(t, FitsSmallInt(0))
	require.True(t, FitsSmallInt(MaxSmallInt))
	require.False(t, FitsSmallInt(MaxSmallInt+1))
	require.False(t, FitsSmallInt(MinSmallInt-1))
}

func TestAllocateArrayAndAccessors(t *testing.T) {
	h := newTestHeap(t)
	ref, roots, err := h.AllocateArray(3, nil)
	require.NoError(t, err)
	require.Nil(t, roots)
	require.True(t, ref.IsHeap())
	require.Equal(t, 3, h.ArrayLength(ref))

	h.SetArrayAt(ref, 0, NewSmallInt(42))
	h.SetArrayAt(ref, 1, NewSmallInt(-7))
	require.Equal(t, int64(42), h.ArrayAt(ref, 0).SmallIntValue())
	require.Equal(t, int64(-7), h.ArrayAt(ref, 1).SmallIntValue())
	require.Equal(t, int64(0), h.ArrayAt(ref, 2).SmallIntValue())
}

func TestAllocateByteStringRoundTrip(t *testing.T) {
	h := newTestHeap(t)
	ref, _, err := h.AllocateByteString([]byte("hello"), nil)
	require.NoError(t, err)
	require.Equal(t, 5, h.ByteArrayLength(ref))
	require.Equal(t, []byte("hello"), h.ByteArrayBytes(ref))
}

func TestAllocateMediumIntegerAndFloat(t *testing.T) {
	h := newTestHeap(t)
	i, _, err := h.AllocateMediumInteger(1 << 40, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1<<40), h.MediumIntegerValue(i))

	f, _, err := h.AllocateFloat64(3.5, nil)
	require.NoError(t, err)
	require.Equal(t, 3.5, h.Float64Value(f))
}

func TestScavengeKeepsReachableArray(t *testing.T) {
	h := newTestHeap(t, WithDebugZapping(true))
	ref, roots, err := h.AllocateArray(1, nil)
	require.NoError(t, err)
	h.SetArrayAt(ref, 0, NewSmallInt(99))

	roots = append(roots, ref)
	roots = h.Scavenge(roots)
	ref = roots[0]

	require.True(t, ref.IsHeap())
	require.Equal(t, int64(99), h.ArrayAt(ref, 0).SmallIntValue())
}

func TestScavengeDropsUnreachableArray(t *testing.T) {
	h := newTestHeap(t)
	before := h.Used()
	_, _, err := h.AllocateArray(4, nil)
	require.NoError(t, err)
	require.Greater(t, h.Used(), before)

	h.Scavenge(nil)
	require.Equal(t, 0, h.Used(), "unreachable array must not survive a scavenge")
}

func TestScavengeFollowsNestedReferences(t *testing.T) {
	h := newTestHeap(t)
	inner, roots, err := h.AllocateArray(1, nil)
	require.NoError(t, err)
	h.SetArrayAt(inner, 0, NewSmallInt(7))

	outer, roots, err := h.AllocateArray(1, roots)
	require.NoError(t, err)
	h.SetArrayAt(outer, 0, inner)

	roots = append(roots, outer)
	roots = h.Scavenge(roots)
	outer = roots[len(roots)-1]

	inner = h.ArrayAt(outer, 0)
	require.True(t, inner.IsHeap())
	require.Equal(t, int64(7), h.ArrayAt(inner, 0).SmallIntValue())
}

func TestEphemeronValueDiesWithKey(t *testing.T) {
	h := newTestHeap(t)
	key, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	value, roots, err := h.AllocateArray(0, roots)
	require.NoError(t, err)
	eph, roots, err := h.AllocateEphemeron(key, value, NilRef, roots)
	require.NoError(t, err)

	// Only the ephemeron itself is rooted; the key is not kept alive by
	// any other path, so it must die and drag the value with it.
	roots = []Ref{eph}
	roots = h.Scavenge(roots)
	eph = roots[0]

	require.Equal(t, NilRef, h.EphemeronKey(eph))
	require.Equal(t, NilRef, h.EphemeronValue(eph))
}

func TestEphemeronValueSurvivesWhenKeyRooted(t *testing.T) {
	h := newTestHeap(t)
	key, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	value, roots, err := h.AllocateArray(0, roots)
	require.NoError(t, err)
	eph, roots, err := h.AllocateEphemeron(key, value, NilRef, roots)
	require.NoError(t, err)

	roots = append(roots, key, eph)
	roots = h.Scavenge(roots)
	eph = roots[len(roots)-1]

	require.NotEqual(t, NilRef, h.EphemeronKey(eph))
	require.NotEqual(t, NilRef, h.EphemeronValue(eph))
}

func TestWeakArraySlotNilledWhenTargetDies(t *testing.T) {
	h := newTestHeap(t)
	target, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	weak, roots, err := h.AllocateWeakArray(1, roots)
	require.NoError(t, err)
	h.SetArrayAt(weak, 0, target)

	roots = []Ref{weak}
	roots = h.Scavenge(roots)
	weak = roots[0]

	require.Equal(t, NilRef, h.ArrayAt(weak, 0))
}

func TestWeakArraySlotSurvivesWhenTargetRooted(t *testing.T) {
	h := newTestHeap(t)
	target, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	weak, roots, err := h.AllocateWeakArray(1, roots)
	require.NoError(t, err)
	h.SetArrayAt(weak, 0, target)

	roots = append(roots, target, weak)
	roots = h.Scavenge(roots)
	weak = roots[len(roots)-1]

	require.NotEqual(t, NilRef, h.ArrayAt(weak, 0))
}

func TestBecomeSwapsIdentity(t *testing.T) {
	h := newTestHeap(t)
	a, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	b, roots, err := h.AllocateArray(0, roots)
	require.NoError(t, err)
	container, roots, err := h.AllocateArray(1, roots)
	require.NoError(t, err)
	h.SetArrayAt(container, 0, a)
	hashB := h.IdentityHash(b)

	roots = []Ref{a, b, container}
	roots, err = h.Become([]Ref{a}, []Ref{b}, roots)
	require.NoError(t, err)
	a, b, container = roots[0], roots[1], roots[2]

	// container[0] referred to a, so it now reaches the object that was b.
	require.Equal(t, hashB, h.IdentityHash(h.ArrayAt(container, 0)))
}

func TestBecomeRejectsLengthMismatch(t *testing.T) {
	h := newTestHeap(t)
	a, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	b, _, err := h.AllocateArray(0, nil)
	require.NoError(t, err)

	_, err = h.Become([]Ref{a, b}, []Ref{b}, roots)
	require.Error(t, err)
}

func TestBecomeRejectsNonDistinctOperands(t *testing.T) {
	h := newTestHeap(t)
	a, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	b, roots, err := h.AllocateArray(0, roots)
	require.NoError(t, err)

	_, err = h.Become([]Ref{a, b}, []Ref{b, a}, roots)
	require.Error(t, err)

	_, err = h.Become([]Ref{a}, []Ref{a}, roots)
	require.Error(t, err)
}

// TestBecomeRoundTripRestoresIdentity exercises the P6 testable property
// (spec.md's "become(a,b) followed by become(b,a) restores every
// reference that targeted a or b to its original value"): a become:
// reversed in a second, independent call must not leave the heap
// stuck chasing a stale forwarding corpse, and must actually return
// observable state to where it started.
func TestBecomeRoundTripRestoresIdentity(t *testing.T) {
	h := newTestHeap(t)
	a, roots, err := h.AllocateArray(0, nil)
	require.NoError(t, err)
	b, roots, err := h.AllocateArray(0, roots)
	require.NoError(t, err)
	container, roots, err := h.AllocateArray(1, roots)
	require.NoError(t, err)
	h.SetArrayAt(container, 0, a)
	hashB := h.IdentityHash(b)

	roots = []Ref{a, b, container}
	roots, err = h.Become([]Ref{a}, []Ref{b}, roots)
	require.NoError(t, err)
	a, b, container = roots[0], roots[1], roots[2]
	require.Equal(t, hashB, h.IdentityHash(h.ArrayAt(container, 0)))

	roots, err = h.Become([]Ref{b}, []Ref{a}, roots)
	require.NoError(t, err)
	a, _, container = roots[0], roots[1], roots[2]
	require.Equal(t, a, h.ArrayAt(container, 0))
}

func TestHandleScopeDepthLimit(t *testing.T) {
	h := newTestHeap(t)
	var scopes []*HandleScope
	for i := 0; i < maxHandles; i++ {
		s, err := h.OpenHandleScope()
		require.NoError(t, err)
		scopes = append(scopes, s)
	}
	_, err := h.OpenHandleScope()
	require.Error(t, err)
	for i := len(scopes) - 1; i >= 0; i-- {
		scopes[i].Close()
	}
}

func TestGrowBeyondMaxSemispaceSizeIsFatal(t *testing.T) {
	h := newTestHeap(t, WithInitialSemispaceSize(256), WithMaxSemispaceSize(256))
	// Keep every array rooted so the heap genuinely fills up instead of
	// being reclaimed by an incidental scavenge, forcing real growth
	// attempts until the configured ceiling is hit.
	var roots []Ref
	var lastErr error
	for i := 0; i < 1000; i++ {
		var ref Ref
		ref, roots, lastErr = h.AllocateArray(8, roots)
		if lastErr != nil {
			break
		}
		roots = append(roots, ref)
	}
	require.Error(t, lastErr)
	var fatal *FatalError
	require.ErrorAs(t, lastErr, &fatal)
}

package resources

import (
	"testing"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/stretchr/testify/require"
)

func pointRef(id int64, name string) kerneltypes.Ref {
	return kerneltypes.NewRef(kerneltypes.ClassPoint, id, name)
}

func TestMutualExclusionQueuesAndGrantsOnFree(t *testing.T) {
	m := New()
	p1 := pointRef(1, "p1")
	p2 := pointRef(2, "p2")

	var v1Grant, v2Grant kerneltypes.ResourceSet
	m.Allocate(1, kerneltypes.ResourceSet{p1}, func(granted kerneltypes.ResourceSet) { v1Grant = granted })
	require.Len(t, v1Grant, 1)

	m.Allocate(2, kerneltypes.ResourceSet{p1, p2}, func(granted kerneltypes.ResourceSet) { v2Grant = granted })
	require.Nil(t, v2Grant, "V2's request must be queued, not granted, while V1 holds p1")
	require.Equal(t, []int64{2}, m.queuedUsersSorted())

	m.Free(1, kerneltypes.ResourceSet{p1})
	require.Len(t, v2Grant, 2)
	require.True(t, v2Grant.Contains(p1))
	require.True(t, v2Grant.Contains(p2))
	require.Empty(t, m.queuedUsersSorted())
}

func TestBlockExpansionGrantsAllMembersAndQueuesContenders(t *testing.T) {
	m := New()
	p3 := pointRef(3, "p3")
	p4 := pointRef(4, "p4")
	m.SetBlocks([]*kerneltypes.Block{{ID: 1, Name: "B", Members: kerneltypes.ResourceSet{p3, p4}}})

	var v1Grant kerneltypes.ResourceSet
	m.Allocate(1, kerneltypes.ResourceSet{p3}, func(granted kerneltypes.ResourceSet) { v1Grant = granted })
	require.True(t, v1Grant.Contains(p3))
	require.True(t, v1Grant.Contains(p4), "claiming p3 must expand to the whole block {p3,p4}")

	var v2Grant kerneltypes.ResourceSet
	m.Allocate(2, kerneltypes.ResourceSet{p4}, func(granted kerneltypes.ResourceSet) { v2Grant = granted })
	require.Nil(t, v2Grant, "V2 requesting p4 must queue until V1 releases the block")

	m.FreeAll(1)
	require.True(t, v2Grant.Contains(p3))
	require.True(t, v2Grant.Contains(p4))
}

func TestDisjointAllocationGrantsDespiteUnrelatedContention(t *testing.T) {
	m := New()
	p1 := pointRef(1, "p1")
	p2 := pointRef(2, "p2")
	p3 := pointRef(3, "p3")

	_, err := m.AllocateNow(1, kerneltypes.ResourceSet{p1})
	require.NoError(t, err)

	// V2 contends with V1 and queues.
	m.Allocate(2, kerneltypes.ResourceSet{p1}, nil)
	require.Equal(t, []int64{2}, m.queuedUsersSorted())

	// V3's claim is disjoint from everything held or queued; the pending
	// V1/V2 contention must not stall it.
	var v3Grant kerneltypes.ResourceSet
	m.Allocate(3, kerneltypes.ResourceSet{p2, p3}, func(granted kerneltypes.ResourceSet) { v3Grant = granted })
	require.Len(t, v3Grant, 2)
	require.Equal(t, []int64{2}, m.queuedUsersSorted())
}

func TestSecondRequestFromQueuedUserQueuesBehindItsFirst(t *testing.T) {
	m := New()
	p1 := pointRef(1, "p1")
	p2 := pointRef(2, "p2")

	_, err := m.AllocateNow(1, kerneltypes.ResourceSet{p1})
	require.NoError(t, err)

	var grants []kerneltypes.ResourceSet
	m.Allocate(2, kerneltypes.ResourceSet{p1}, func(granted kerneltypes.ResourceSet) { grants = append(grants, granted) })
	// p2 is free, but V2's second request must wait behind its first.
	m.Allocate(2, kerneltypes.ResourceSet{p2}, func(granted kerneltypes.ResourceSet) { grants = append(grants, granted) })
	require.Empty(t, grants)

	m.Free(1, kerneltypes.ResourceSet{p1})
	require.Len(t, grants, 2)
	require.True(t, grants[0].Contains(p1))
	require.True(t, grants[1].Contains(p2))
}

func TestAllocateThenFreeReturnsToPriorState(t *testing.T) {
	m := New()
	p1 := pointRef(1, "p1")
	p2 := pointRef(2, "p2")

	before := m.GetAllocations()
	m.Allocate(1, kerneltypes.ResourceSet{p1, p2}, nil)
	m.Free(1, kerneltypes.ResourceSet{p1, p2})
	after := m.GetAllocations()

	require.Equal(t, len(before), len(after))
	require.Empty(t, after[1])
}

func TestAllocatingEmptySetSucceedsTrivially(t *testing.T) {
	m := New()
	granted, err := m.AllocateNow(1, nil)
	require.NoError(t, err)
	require.Empty(t, granted)
}

func TestAllocateNowFailsWhenHeldByAnother(t *testing.T) {
	m := New()
	p1 := pointRef(1, "p1")

	_, err := m.AllocateNow(1, kerneltypes.ResourceSet{p1})
	require.NoError(t, err)

	_, err = m.AllocateNow(2, kerneltypes.ResourceSet{p1})
	require.Error(t, err)
}

func TestCancelRequestRemovesQueuedEntry(t *testing.T) {
	m := New()
	p1 := pointRef(1, "p1")

	_, err := m.AllocateNow(1, kerneltypes.ResourceSet{p1})
	require.NoError(t, err)

	m.Allocate(2, kerneltypes.ResourceSet{p1}, nil)
	require.Equal(t, []int64{2}, m.queuedUsersSorted())

	require.True(t, m.CancelRequest(2, kerneltypes.ResourceSet{p1}))
	require.Empty(t, m.queuedUsersSorted())
	require.False(t, m.CancelRequest(2, kerneltypes.ResourceSet{p1}))
}

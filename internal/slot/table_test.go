package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	name string
	n    int
}

func TestAllocate_GrowsFromEmpty(t *testing.T) {
	tbl := New[record]()
	assert.Equal(t, 0, tbl.Len())

	h1, err := tbl.Allocate()
	require.NoError(t, err)
	h2, err := tbl.Allocate()
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, tbl.Len(), "first growth should go straight to two slots")
	assert.Equal(t, 2, tbl.Count())
}

func TestAllocate_IncrementBelowTwoIsRaised(t *testing.T) {
	tbl := New(WithIncrement[record](1))
	_, err := tbl.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestAllocate_ZeroesReusedRecord(t *testing.T) {
	tbl := New[record]()
	h, err := tbl.Allocate()
	require.NoError(t, err)

	rec, ok := tbl.Access(h)
	require.True(t, ok)
	rec.name = "stale"
	rec.n = 42

	require.NoError(t, tbl.Release(h))

	h2, err := tbl.Allocate()
	require.NoError(t, err)
	rec2, ok := tbl.Access(h2)
	require.True(t, ok)
	assert.Equal(t, record{}, *rec2)
}

func TestRelease_ReusesLowestFreeSlot(t *testing.T) {
	tbl := New[record]()
	handles := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		h, err := tbl.Allocate()
		require.NoError(t, err)
		handles = append(handles, h)
	}

	require.NoError(t, tbl.Release(handles[1]))
	require.NoError(t, tbl.Release(handles[3]))

	h, err := tbl.Allocate()
	require.NoError(t, err)
	assert.Equal(t, handles[1], h)
	assert.Equal(t, 4, tbl.Count())
}

func TestRelease_InvalidHandles(t *testing.T) {
	var finalized int
	tbl := New(WithFinalizer(func(int, *record) { finalized++ }))
	h, err := tbl.Allocate()
	require.NoError(t, err)

	testCases := []struct {
		name   string
		handle int
	}{
		{name: "negative", handle: -1},
		{name: "out of range", handle: 100},
		{name: "never allocated but within capacity", handle: h + 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tbl.Release(tc.handle)
			require.ErrorIs(t, err, ErrInvalidHandle)
		})
	}

	require.NoError(t, tbl.Release(h))
	require.ErrorIs(t, tbl.Release(h), ErrInvalidHandle, "double release must fail")
	assert.Equal(t, 1, finalized)
}

func TestRelease_RunsFinalizerBeforeFreeing(t *testing.T) {
	var seen record
	var wasLive bool
	var tbl *Table[record]
	tbl = New(WithFinalizer(func(h int, rec *record) {
		seen = *rec
		wasLive = tbl.InUse(h)
	}))

	h, err := tbl.Allocate()
	require.NoError(t, err)
	rec, _ := tbl.Access(h)
	rec.name = "owned"

	require.NoError(t, tbl.Release(h))
	assert.Equal(t, "owned", seen.name)
	assert.True(t, wasLive)
	assert.False(t, tbl.InUse(h))
}

func TestAllocate_RespectsMax(t *testing.T) {
	tbl := New(WithIncrement[record](2), WithMax[record](3))
	for i := 0; i < 3; i++ {
		_, err := tbl.Allocate()
		require.NoError(t, err)
	}
	h, err := tbl.Allocate()
	require.ErrorIs(t, err, ErrOutOfSlots)
	assert.Equal(t, -1, h)
	assert.Equal(t, 3, tbl.Len())
}

func TestFind_FirstMatchInHandleOrder(t *testing.T) {
	tbl := New[record]()
	for _, name := range []string{"a", "b", "b"} {
		h, err := tbl.Allocate()
		require.NoError(t, err)
		rec, _ := tbl.Access(h)
		rec.name = name
	}

	h, ok := tbl.Find(func(_ int, rec *record) bool { return rec.name == "b" })
	require.True(t, ok)
	assert.Equal(t, 1, h)

	require.NoError(t, tbl.Release(1))
	h, ok = tbl.Find(func(_ int, rec *record) bool { return rec.name == "b" })
	require.True(t, ok)
	assert.Equal(t, 2, h, "released slots are skipped")

	_, ok = tbl.Find(func(_ int, rec *record) bool { return rec.name == "zzz" })
	assert.False(t, ok)
}

func TestAccess_InvalidHandle(t *testing.T) {
	tbl := New[record]()
	_, ok := tbl.Access(-1)
	assert.False(t, ok)
	_, ok = tbl.Access(0)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len(), "access must not allocate")
}

func TestEach_VisitsLiveSlotsOnly(t *testing.T) {
	tbl := New[record]()
	for i := 0; i < 4; i++ {
		_, err := tbl.Allocate()
		require.NoError(t, err)
	}
	require.NoError(t, tbl.Release(2))

	var visited []int
	tbl.Each(func(h int, _ *record) { visited = append(visited, h) })
	assert.Equal(t, []int{0, 1, 3}, visited)
}

package contiguous

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstFitPlacement(t *testing.T) {
	a := New(256, 64, t.TempDir())
	require.True(t, a.EnsureResident("p1", 100))
	require.True(t, a.EnsureResident("p2", 100))
	require.False(t, a.EnsureResident("p3", 100), "only 256-128-128=0 bytes left")
}

func TestDeallocateFreesGap(t *testing.T) {
	a := New(256, 64, t.TempDir())
	a.EnsureResident("p1", 64)
	a.EnsureResident("p2", 64)
	a.Deallocate("p1")
	require.True(t, a.EnsureResident("p3", 64), "p3 should reuse freed gap")
}

func TestNoOverlapAndFrameAlignment(t *testing.T) {
	a := New(256, 64, t.TempDir())
	a.EnsureResident("p1", 10) // rounds up to 64
	a.EnsureResident("p2", 10)
	require.Len(t, a.blocks, 2)
	require.Equal(t, a.blocks[0].End, a.blocks[1].Start)
	for _, b := range a.blocks {
		require.Zero(t, b.Start%a.frameSize)
		require.Zero(t, b.End%a.frameSize)
	}
}

func TestAccessRoundTrip(t *testing.T) {
	a := New(256, 64, t.TempDir())
	a.EnsureResident("p1", 64)
	_, ok := a.Access("p1", 1, 0, true, 4660)
	require.True(t, ok)
	v, ok := a.Access("p1", 1, 0, false, 0)
	require.True(t, ok)
	require.Equal(t, uint16(4660), v)
}

func TestAccessOutOfRangeIsViolation(t *testing.T) {
	a := New(256, 64, t.TempDir())
	a.EnsureResident("p1", 64)
	_, ok := a.Access("p1", 1, 64, false, 0)
	require.False(t, ok)
}

func TestSnapshotFragmentation(t *testing.T) {
	a := New(256, 64, t.TempDir())
	a.EnsureResident("p1", 64)
	a.blocks = append(a.blocks, Block{Start: 128, End: 192, Owner: "p2"})
	a.sizes["p2"] = 64
	rep := a.Snapshot()
	require.Positive(t, rep.FragmentedKB)
}

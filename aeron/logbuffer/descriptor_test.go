package logbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackAndUnpackTail(t *testing.T) {
	raw := PackTail(7, 4096)
	require.Equal(t, int32(7), TermID(raw))
	require.Equal(t, int32(4096), TermOffset(raw))
}

func TestPackTailOverflowedOffsetRoundTrips(t *testing.T) {
	// An offset that overflowed past term length (tripped case) must still
	// round-trip through the uint32 mask.
	raw := PackTail(3, 1<<20)
	require.Equal(t, int32(3), TermID(raw))
	require.Equal(t, int32(1<<20), TermOffset(raw))
}

func TestComputePositionMonotonic(t *testing.T) {
	shift := PositionBitsToShift(1 << 16) // 64KiB term -> shift 16
	initialTermID := int32(5)

	p1 := ComputePosition(5, 100, shift, initialTermID)
	p2 := ComputePosition(5, 200, shift, initialTermID)
	p3 := ComputePosition(6, 0, shift, initialTermID)

	require.Less(t, p1, p2)
	require.Less(t, p2, p3)
	require.Equal(t, int64(1<<16), p3)
}

func TestComputeTermIDAndOffsetFromPosition(t *testing.T) {
	shift := PositionBitsToShift(1 << 16)
	initialTermID := int32(2)

	position := ComputePosition(4, 300, shift, initialTermID)

	require.Equal(t, int32(4), ComputeTermIDFromPosition(position, shift, initialTermID))
	require.Equal(t, int32(300), ComputeTermOffsetFromPosition(position, shift))
}

func TestIndexByTermAndRotateIndex(t *testing.T) {
	require.Equal(t, int32(0), IndexByTerm(0, 0))
	require.Equal(t, int32(1), IndexByTerm(0, 1))
	require.Equal(t, int32(2), IndexByTerm(0, 2))
	require.Equal(t, int32(0), IndexByTerm(0, 3))

	require.Equal(t, int32(1), RotateIndex(0))
	require.Equal(t, int32(2), RotateIndex(1))
	require.Equal(t, int32(0), RotateIndex(2))
}

func TestPositionBitsToShift(t *testing.T) {
	require.Equal(t, uint(16), PositionBitsToShift(1<<16))
	require.Equal(t, uint(24), PositionBitsToShift(1<<24))
}

package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignInt32(t *testing.T) {
	cases := []struct{ value, alignment, want int32 }{
		{0, 32, 0},
		{1, 32, 32},
		{32, 32, 32},
		{33, 32, 64},
		{63, 32, 64},
	}
	for _, c := range cases {
		require.Equal(t, c.want, AlignInt32(c.value, c.alignment))
	}
}

func TestAlignInt64(t *testing.T) {
	require.Equal(t, int64(4096), AlignInt64(1, 4096))
	require.Equal(t, int64(4096), AlignInt64(4096, 4096))
	require.Equal(t, int64(8192), AlignInt64(4097, 4096))
}

func TestIsPowerOfTwo(t *testing.T) {
	require.True(t, IsPowerOfTwo(1))
	require.True(t, IsPowerOfTwo(2))
	require.True(t, IsPowerOfTwo(1<<20))
	require.False(t, IsPowerOfTwo(0))
	require.False(t, IsPowerOfTwo(-2))
	require.False(t, IsPowerOfTwo(3))
}

func TestNumberOfTrailingZeros(t *testing.T) {
	require.Equal(t, int32(0), NumberOfTrailingZeros(1))
	require.Equal(t, int32(16), NumberOfTrailingZeros(1<<16))
	require.Equal(t, int32(20), NumberOfTrailingZeros(1<<20))
	require.Equal(t, int32(32), NumberOfTrailingZeros(0))
}

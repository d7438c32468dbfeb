package flyweight

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aeron-go/logbuffers/aeron/atomic"
)

func TestInt64FieldGetSet(t *testing.T) {
	var buf atomic.Buffer
	buf.WrapSlice(make([]byte, 64))

	f := WrapInt64Field(&buf, 8)
	f.Set(42)
	require.Equal(t, int64(42), f.Get())
	require.Equal(t, int64(42), f.GetPlain())

	f.SetPlain(7)
	require.Equal(t, int64(7), f.Get())
}

func TestInt64FieldCompareAndSwapAndAdd(t *testing.T) {
	var buf atomic.Buffer
	buf.WrapSlice(make([]byte, 64))

	f := WrapInt64Field(&buf, 0)
	require.True(t, f.CompareAndSwap(0, 10))
	require.False(t, f.CompareAndSwap(0, 20))

	prior := f.GetAndAddInt64(5)
	require.Equal(t, int64(10), prior)
	require.Equal(t, int64(15), f.Get())
}

func TestInt32FieldGetSetAndCAS(t *testing.T) {
	var buf atomic.Buffer
	buf.WrapSlice(make([]byte, 64))

	f := WrapInt32Field(&buf, 4)
	f.Set(100)
	require.Equal(t, int32(100), f.Get())

	require.True(t, f.CompareAndSwap(100, 200))
	require.False(t, f.CompareAndSwap(100, 300))
	require.Equal(t, int32(200), f.Get())
}

func TestFieldsAreIndependent(t *testing.T) {
	var buf atomic.Buffer
	buf.WrapSlice(make([]byte, 64))

	a := WrapInt64Field(&buf, 0)
	b := WrapInt32Field(&buf, 16)

	a.Set(-1)
	b.Set(123)

	require.Equal(t, int64(-1), a.Get())
	require.Equal(t, int32(123), b.Get())
}

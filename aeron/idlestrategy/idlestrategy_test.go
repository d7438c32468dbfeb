package idlestrategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpinSleepEscalatesAndResets(t *testing.T) {
	s := NewSpinSleep(time.Millisecond)

	for i := 0; i < maxSpins+maxYields+1; i++ {
		s.Idle()
	}
	require.Equal(t, maxSpins, s.spins)
	require.Equal(t, maxYields, s.yields)
	require.Greater(t, s.sleepTime, time.Duration(0))

	s.Reset()
	require.Equal(t, 0, s.spins)
	require.Equal(t, 0, s.yields)
	require.Equal(t, time.Duration(0), s.sleepTime)
}

func TestSpinSleepDefaultsMaxSleep(t *testing.T) {
	s := NewSpinSleep(0)
	require.Equal(t, time.Millisecond, s.maxSleep)
}

func TestNoopIsNoop(t *testing.T) {
	var n Noop
	n.Idle()
	n.Reset()
}

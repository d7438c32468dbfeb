package applog

import (
	"context"
	"path/filepath"
	"sync"
	sync_atomic "sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aeron-go/logbuffers/aeron/atomic"
	"github.com/aeron-go/logbuffers/aeron/logbuffer"
)

func newTestLog(t *testing.T, opts ...Option) *AppendLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "applog.dat")
	allOpts := append([]Option{WithTermLength(logbuffer.TermMinLength)}, opts...)
	al, err := New(path, 0, allOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { al.Close() })
	return al
}

func TestAppendAndPollDeliversPayload(t *testing.T) {
	al := newTestLog(t)

	var mu sync.Mutex
	var received [][]byte
	al.OnAppend(func(payload []byte, header logbuffer.FrameHeader) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, append([]byte(nil), payload...))
	})

	require.NoError(t, al.Append([]byte("hello")))
	require.NoError(t, al.Append([]byte("world")))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, al.StartPolling(ctx))
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, "hello", string(received[0]))
	require.Equal(t, "world", string(received[1]))
	mu.Unlock()
}

// TestConcurrentAppendAcrossRotationDeliversEveryFrameExactlyOnce forces
// many producer goroutines to race RotateLog repeatedly: the term is small
// enough, and the frame count large enough, that several rotations happen
// while claims are still in flight. Every committed frame must surface to
// OnAppend exactly once, with its reserved-value id intact, which would
// fail if a rotated-into partition were ever claimed against a stale tail.
func TestConcurrentAppendAcrossRotationDeliversEveryFrameExactlyOnce(t *testing.T) {
	var nextID int64
	al := newTestLog(t, WithReservedValueSupplier(func(*atomic.Buffer, int32, int32) int64 {
		return sync_atomic.AddInt64(&nextID, 1) - 1
	}))

	const goroutines = 8
	const perGoroutine = 400 // 8*400 frames of 64 bytes each forces several
	// rotations of the 64KiB minimum term (64KiB / 64B = 1024 frames/term).
	const total = goroutines * perGoroutine

	var mu sync.Mutex
	seen := make(map[int64]int)
	al.OnAppend(func(payload []byte, header logbuffer.FrameHeader) {
		mu.Lock()
		seen[header.ReservedValue]++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				claim, err := al.Claim(24)
				require.NoError(t, err)
				require.NoError(t, claim.Commit())
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, al.StartPolling(ctx))
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == total
	}, 5*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, total)
	for id := int64(0); id < total; id++ {
		require.Equal(t, 1, seen[id], "frame %d delivered %d times", id, seen[id])
	}
}

func TestStartPollingTwiceReturnsErrAlreadyPolling(t *testing.T) {
	al := newTestLog(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, al.StartPolling(ctx))
	require.ErrorIs(t, al.StartPolling(ctx), ErrAlreadyPolling)
}

func TestClaimAbortDoesNotDeliverToOnAppend(t *testing.T) {
	al := newTestLog(t)

	var delivered int
	al.OnAppend(func([]byte, logbuffer.FrameHeader) { delivered++ })

	claim, err := al.Claim(16)
	require.NoError(t, err)
	require.NoError(t, al.Abort(claim))

	require.NoError(t, al.Append([]byte("after-abort")))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, al.StartPolling(ctx))
	defer cancel()

	require.Eventually(t, func() bool { return delivered == 1 }, time.Second, time.Millisecond)
}

func TestCloseAfterCloseIsNoop(t *testing.T) {
	al := newTestLog(t)
	require.NoError(t, al.Close())
	require.NoError(t, al.Close())
}

func TestClaimAfterCloseReturnsErrClosed(t *testing.T) {
	al := newTestLog(t)
	require.NoError(t, al.Close())

	_, err := al.Claim(8)
	require.ErrorIs(t, err, ErrClosed)
}

func TestPositionAdvancesAfterAppend(t *testing.T) {
	al := newTestLog(t)

	before := al.Position()
	require.NoError(t, al.Append([]byte("12345678")))
	after := al.Position()

	require.Greater(t, after, before)
}

func TestOnErrorReceivesRecoveredOnAppendPanic(t *testing.T) {
	al := newTestLog(t)

	var mu sync.Mutex
	var gotErr error
	al.OnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		gotErr = err
	})
	al.OnAppend(func([]byte, logbuffer.FrameHeader) {
		panic("boom")
	})

	require.NoError(t, al.Append([]byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, al.StartPolling(ctx))
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotErr != nil
	}, time.Second, time.Millisecond)
}

// Package applog is the producer/consumer facade over the Aeron-derived
// shared-memory append log: it owns the mapped log file, the per-partition
// appenders, the background poller and cleaner goroutines, and the public
// Claim/Append/OnAppend surface applications are expected to use directly
// instead of reaching into aeron/logbuffer themselves.
package applog

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aeron-go/logbuffers/aeron/idlestrategy"
	"github.com/aeron-go/logbuffers/aeron/logbuffer"
	"github.com/aeron-go/logbuffers/aeron/logbuffer/term"
)

// OnAppend is invoked by the poller for every committed, non-padding frame
// it delivers, in commit order.
type OnAppend func(payload []byte, header logbuffer.FrameHeader)

// OnError is invoked with errors the background poller recovers from (a
// panicking OnAppend callback). The poller keeps running afterward; see
// StartPolling. A cleaner panic is not reported here: it is re-raised.
type OnError func(error)

// AppendLog is a multi-producer/single-consumer append-only log backed by a
// memory-mapped file. Producers call Claim or Append from any number of
// goroutines or processes; StartPolling drives exactly one consumer loop
// that delivers committed frames to OnAppend in order.
type AppendLog struct {
	logBuffers *logbuffer.LogBuffers
	appenders  [logbuffer.PartitionCount]*term.Appender
	options    Options
	metrics    *metrics
	logger     *zap.Logger

	reserved term.ReservedValueSupplier

	mu                 sync.Mutex
	onAppend           OnAppend
	onError            OnError
	subscriberPosition int64

	closed   int32
	polling  int32
	pollGrp  *errgroup.Group
	pollDone context.CancelFunc
}

// New opens or creates the log file at path and returns a ready AppendLog.
// bufferSizeBytes is the caller's desired total mapped size; it is only
// used to derive a term length when WithTermLength was not supplied. The
// term length fixes the file size, so reopening an existing file succeeds
// only when the term length derived here matches the one it was created
// with; the term length stamped in its metadata is not consulted.
func New(path string, bufferSizeBytes int64, opts ...Option) (*AppendLog, error) {
	options := defaultOptionsValue()
	for _, opt := range opts {
		opt(&options)
	}

	termLength := options.termLength
	if !options.termLengthSet && bufferSizeBytes > 0 {
		if derived := deriveTermLength(bufferSizeBytes); derived >= logbuffer.TermMinLength {
			termLength = derived
		}
	}

	sessionID := options.sessionID
	if sessionID == 0 {
		sessionID = defaultSessionID()
	}

	headerTemplate := buildDefaultFrameHeader(sessionID, options.streamID)

	logBuffers, err := logbuffer.OpenLogBuffers(path, termLength,
		logbuffer.WithSpinLimitBeforeUnblock(options.spinLimitBeforeUnblock),
		logbuffer.WithPollFragmentLimit(options.pollFragmentLimit),
		logbuffer.WithDefaultFrameHeader(headerTemplate),
	)
	if err != nil {
		return nil, fmt.Errorf("applog: open %s: %w", path, err)
	}

	m := newMetrics(options.registerer, options.metricsNamespace)

	al := &AppendLog{
		logBuffers: logBuffers,
		options:    options,
		metrics:    m,
		logger:     options.logger,
		reserved:   options.reservedValueSupplier,
	}

	meta := logBuffers.Meta()
	for i := 0; i < logbuffer.PartitionCount; i++ {
		idx := i
		al.appenders[idx] = term.NewAppender(
			logBuffers.Buffer(idx),
			logBuffers.TermMetadata(idx),
			meta.DefaultFrameHeader,
			options.spinLimitBeforeUnblock,
			al.onProducerStall,
		)
	}

	return al, nil
}

func deriveTermLength(bufferSizeBytes int64) int32 {
	perPartition := bufferSizeBytes / logbuffer.PartitionCount
	length := logbuffer.TermMinLength
	for length*2 <= logbuffer.TermMaxLength/2 && int64(length*2) <= perPartition {
		length *= 2
	}
	return length
}

func defaultSessionID() int32 {
	instanceID := (int64(os.Getpid()) << 32) | int64(time.Now().Unix()&0xFFFFFFFF)
	return int32(instanceID>>32) ^ int32(instanceID)
}

func buildDefaultFrameHeader(sessionID, streamID int32) []byte {
	hdr := make([]byte, logbuffer.HeaderLength)
	binary.LittleEndian.PutUint32(hdr[logbuffer.DataFrameHeader.SessionIDFieldOffset:], uint32(sessionID))
	binary.LittleEndian.PutUint32(hdr[logbuffer.DataFrameHeader.StreamIDFieldOffset:], uint32(streamID))
	hdr[logbuffer.DataFrameHeader.VersionFieldOffset] = byte(logbuffer.DataFrameHeader.CurrentVersion)
	binary.LittleEndian.PutUint16(hdr[logbuffer.DataFrameHeader.TypeFieldOffset:], uint16(logbuffer.DataFrameHeader.TypeData))
	return hdr
}

func (al *AppendLog) onProducerStall(termID, termOffset int32) {
	al.metrics.stallUnblocksTotal.Inc()
	al.logger.Warn("reclaimed stalled claim",
		zap.Int32("term_id", termID), zap.Int32("term_offset", termOffset))
}

// Claim reserves length bytes of payload for the caller to write directly
// into, without an intermediate copy. The caller must call Commit or Abort
// on the returned BufferClaim exactly once. Claim internally retries across
// term rotations; it only returns an error if the log is closed or length
// cannot fit within a whole term.
func (al *AppendLog) Claim(length int32) (*term.BufferClaim, error) {
	if atomic.LoadInt32(&al.closed) != 0 {
		return nil, ErrClosed
	}
	al.metrics.claimsTotal.Inc()

	var result term.ClaimResult
	claim := new(term.BufferClaim)
	for {
		activeIndex := al.logBuffers.Meta().ActivePartitionIndex.Get()
		appender := al.appenders[activeIndex]

		if err := appender.Claim(&result, length, claim, al.reserved); err != nil {
			if length > 0 {
				return nil, fmt.Errorf("%w: %w", ErrClaimTooLarge, err)
			}
			return nil, err
		}

		switch {
		case result.Code >= 0:
			return claim, nil
		case result.Code == term.ResultTripped:
			al.metrics.tripsTotal.Inc()
			al.logBuffers.RotateLog(activeIndex, result.TermID)
			continue
		default: // term.ResultFailed
			// Another producer tripped this term first and performs the
			// rotation; retry once the active partition index moves on.
			runtime.Gosched()
			continue
		}
	}
}

// Append copies payload into a freshly claimed frame and commits it. It is
// a convenience wrapper around Claim for callers that do not need a
// zero-copy write.
func (al *AppendLog) Append(payload []byte) error {
	claim, err := al.Claim(int32(len(payload)))
	if err != nil {
		return err
	}
	copy(claim.Buffer(), payload)
	if err := claim.Commit(); err != nil {
		return err
	}
	al.metrics.commitsTotal.Inc()
	return nil
}

// Abort discards a claim obtained from Claim without publishing it, marking
// the reserved frame as padding so the consumer skips it.
func (al *AppendLog) Abort(claim *term.BufferClaim) error {
	if err := claim.Abort(); err != nil {
		return err
	}
	al.metrics.abortsTotal.Inc()
	return nil
}

// Position returns the publisher's current stream position: the flat,
// monotonically increasing coordinate across term rotations.
func (al *AppendLog) Position() int64 {
	meta := al.logBuffers.Meta()
	activeIndex := meta.ActivePartitionIndex.Get()
	rawTail := al.appenders[activeIndex].RawTail()
	termID := logbuffer.TermID(rawTail)
	termOffset := logbuffer.TermOffset(rawTail)
	shift := al.logBuffers.PositionBitsToShift()
	pos := logbuffer.ComputePosition(termID, termOffset, shift, meta.InitialTermID.Get())
	al.metrics.position.Set(float64(pos))
	return pos
}

// SubscriberPosition returns the single consumer's current stream position,
// i.e. how far StartPolling's loop has delivered frames to OnAppend.
func (al *AppendLog) SubscriberPosition() int64 {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.subscriberPosition
}

// OnAppend installs the callback the poll loop delivers committed frames
// to. Must be set before StartPolling; it is not safe to change while
// polling.
func (al *AppendLog) OnAppend(fn OnAppend) {
	al.mu.Lock()
	defer al.mu.Unlock()
	al.onAppend = fn
}

// OnError installs the callback invoked with errors the poller recovers
// from.
func (al *AppendLog) OnError(fn OnError) {
	al.mu.Lock()
	defer al.mu.Unlock()
	al.onError = fn
}

// StartPolling launches the single-consumer poll loop and the background
// cleaner goroutine. It returns ErrAlreadyPolling if called twice, or
// ErrClosed if the log has already been closed.
func (al *AppendLog) StartPolling(ctx context.Context) error {
	if atomic.LoadInt32(&al.closed) != 0 {
		return ErrClosed
	}
	if !atomic.CompareAndSwapInt32(&al.polling, 0, 1) {
		return ErrAlreadyPolling
	}

	ctx, cancel := context.WithCancel(ctx)
	al.pollDone = cancel

	grp, gctx := errgroup.WithContext(ctx)
	al.pollGrp = grp

	grp.Go(func() error { return al.runPoller(gctx) })
	grp.Go(func() error { return al.runCleaner(gctx) })

	return nil
}

// Stop signals the poller and cleaner to exit and waits for them. It is
// safe to call Stop when polling was never started.
func (al *AppendLog) Stop() error {
	if al.pollDone != nil {
		al.pollDone()
	}
	if al.pollGrp == nil {
		return nil
	}
	err := al.pollGrp.Wait()
	atomic.StoreInt32(&al.polling, 0)
	return err
}

// runPoller drives the single-consumer read loop: it tracks the current
// subscriber (term id, term offset), scans for newly committed frames,
// advances across term rotations, and idles when nothing new is available.
// A panic from an OnAppend callback is recovered and reported through
// OnError; the loop continues with the next poll iteration (§7).
func (al *AppendLog) runPoller(ctx context.Context) error {
	idler := idlestrategy.NewSpinSleep(al.options.maxIdleSleep)
	meta := al.logBuffers.Meta()
	shift := al.logBuffers.PositionBitsToShift()
	initialTermID := meta.InitialTermID.Get()

	termID := initialTermID
	partitionIndex := logbuffer.IndexByTerm(initialTermID, termID)
	termOffset := int32(0)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		bytesRead, fragments := al.pollOnce(&termID, &partitionIndex, &termOffset, initialTermID, shift)

		pos := logbuffer.ComputePosition(termID, termOffset, shift, initialTermID)
		al.mu.Lock()
		al.subscriberPosition = pos
		al.mu.Unlock()
		al.metrics.subscriberPosition.Set(float64(pos))

		if fragments > 0 {
			al.metrics.fragmentsTotal.Add(float64(fragments))
			idler.Reset()
			continue
		}
		if bytesRead > 0 {
			// consumed end-of-term padding only; loop straight into the
			// rotated term instead of idling.
			continue
		}

		al.metrics.pollIdleTotal.Inc()
		idler.Idle()
	}
}

// pollOnce scans the active term buffer once from termOffset, delivering
// any committed frames, and advances termID/partitionIndex/termOffset
// across a rotation if the term's tail is exhausted.
func (al *AppendLog) pollOnce(termID, partitionIndex *int32, termOffset *int32, initialTermID int32, shift uint) (bytesRead int32, fragments int) {
	buf := al.logBuffers.Buffer(int(*partitionIndex))

	bytesRead, fragments = term.Scan(buf, *termOffset, al.options.pollFragmentLimit, al.handleAppend)
	*termOffset += bytesRead

	if *termOffset >= al.logBuffers.TermLength() {
		*termID++
		*partitionIndex = logbuffer.RotateIndex(*partitionIndex)
		*termOffset = 0
	}

	return bytesRead, fragments
}

// handleAppend recovers from a panicking OnAppend callback, reports it via
// OnError, and lets the poll loop continue rather than taking the whole
// consumer down (§7 distinguishes poller faults, which are recoverable,
// from cleaner faults, which are not).
func (al *AppendLog) handleAppend(payload []byte, header logbuffer.FrameHeader) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("applog: OnAppend panicked: %v", r)
			al.logger.Error("OnAppend panicked", zap.Any("recovered", r))
			al.mu.Lock()
			onError := al.onError
			al.mu.Unlock()
			if onError != nil {
				onError(err)
			}
		}
	}()

	al.mu.Lock()
	onAppend := al.onAppend
	al.mu.Unlock()
	if onAppend != nil {
		onAppend(payload, header)
	}
}

// runCleaner zero-fills retired partitions marked NEEDS_CLEANING so they
// are safe to reuse once rotation cycles back around to them. Unlike the
// poller, a panic here is logged and then re-raised: a cleaner that cannot
// make progress must not silently leave a dirty partition in the ring
// (§7).
func (al *AppendLog) runCleaner(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			al.logger.Error("cleaner panicked, halting", zap.Any("recovered", r))
			panic(r)
		}
	}()

	ticker := time.NewTicker(al.options.maxIdleSleep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, idx := range al.logBuffers.PendingCleans() {
				al.logBuffers.CleanPartition(idx)
				al.metrics.cleanCyclesTotal.Inc()
			}
		}
	}
}

// Close stops polling (if running) and unmaps the log file. The AppendLog
// must not be used afterward.
func (al *AppendLog) Close() error {
	if !atomic.CompareAndSwapInt32(&al.closed, 0, 1) {
		return nil
	}
	_ = al.Stop()
	return al.logBuffers.Close()
}

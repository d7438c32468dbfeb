/*
Copyright 2016 Stanislav Liberman

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package term implements the multi-producer term appender and the
// single-consumer term reader described in §4.3 and §4.5: claim/commit of
// frames within one term, end-of-term padding and rotation handoff, and the
// ordered scan of committed frames back out.
package term

import (
	"math"
	"runtime"

	"github.com/aeron-go/logbuffers/aeron/atomic"
	"github.com/aeron-go/logbuffers/aeron/flyweight"
	"github.com/aeron-go/logbuffers/aeron/logbuffer"
	"github.com/aeron-go/logbuffers/aeron/util"
)

const (
	// ResultTripped is returned when a claim ran off the end of its term;
	// the caller must rotate and retry in the new active partition.
	ResultTripped int64 = -1

	// ResultFailed is returned when the tail offset was already past the
	// end of the term, i.e. another producer tripped this term first; the
	// caller retries once that producer has rotated. A frame larger than
	// a whole term is rejected with logbuffer.ErrInvalidFrameLength.
	ResultFailed int64 = -2
)

// headerWriter stamps the fixed per-claim header fields (term_offset,
// term_id) over a session/stream template captured once at appender
// construction, mirroring the teacher's headerWriter.
type headerWriter struct {
	sessionID int32
	streamID  int32
}

func (h *headerWriter) fill(defaultHdr *atomic.Buffer) {
	h.sessionID = defaultHdr.GetInt32(logbuffer.DataFrameHeader.SessionIDFieldOffset)
	h.streamID = defaultHdr.GetInt32(logbuffer.DataFrameHeader.StreamIDFieldOffset)
}

// write stamps header fields at offset. The caller has already CAS'd
// frame_length to -length; write must not touch frame_length again until
// BufferClaim.Commit publishes it.
func (h *headerWriter) write(termBuffer *atomic.Buffer, offset, length, termID int32) {
	termBuffer.PutUInt8(offset+logbuffer.DataFrameHeader.FlagsFieldOffset, 0)
	termBuffer.PutInt8(offset+logbuffer.DataFrameHeader.VersionFieldOffset, logbuffer.DataFrameHeader.CurrentVersion)
	termBuffer.PutUInt16(offset+logbuffer.DataFrameHeader.TypeFieldOffset, uint16(logbuffer.DataFrameHeader.TypeData))
	termBuffer.PutInt32(offset+logbuffer.DataFrameHeader.TermOffsetFieldOffset, offset)
	termBuffer.PutInt32(offset+logbuffer.DataFrameHeader.SessionIDFieldOffset, h.sessionID)
	termBuffer.PutInt32(offset+logbuffer.DataFrameHeader.StreamIDFieldOffset, h.streamID)
	termBuffer.PutInt32(offset+logbuffer.DataFrameHeader.TermIDFieldOffset, termID)
}

// StallObserver is notified whenever a producer reclaims a slot whose
// original writer appears to have stalled or died before committing
// (§4.3 step 6). Used by the facade to log/count the event; nil is a valid,
// silent observer.
type StallObserver func(termID, termOffset int32)

// ClaimResult reports the outcome of an Appender.Claim call. Code is either
// a positive term offset just past the newly claimed frame, ResultTripped,
// or ResultFailed. Out-parameter style (as opposed to a fresh allocation
// per call) keeps the hot path allocation-free.
type ClaimResult struct {
	Code   int64
	TermID int32
}

// Appender is the multi-producer writer for a single term. It owns no
// rotation decisions; on ResultTripped the caller (the append-log facade)
// drives LogBuffers.RotateLog and retries in the newly active partition.
type Appender struct {
	termBuffer             *atomic.Buffer
	tailCounter            flyweight.Int64Field
	headerWriter           headerWriter
	spinLimitBeforeUnblock int
	onStall                StallObserver
}

// NewAppender builds an Appender bound to one (term buffer, term metadata)
// partition pair. defaultFrameHeader supplies the session/stream template
// every claimed frame inherits.
func NewAppender(termBuffer, termMetadata, defaultFrameHeader *atomic.Buffer, spinLimitBeforeUnblock int, onStall StallObserver) *Appender {
	a := &Appender{
		termBuffer:             termBuffer,
		tailCounter:            flyweight.WrapInt64Field(termMetadata, 0),
		spinLimitBeforeUnblock: spinLimitBeforeUnblock,
		onStall:                onStall,
	}
	a.headerWriter.fill(defaultFrameHeader)
	return a
}

// RawTail returns the current packed (term_id, tail_offset) value.
func (a *Appender) RawTail() int64 {
	return a.tailCounter.Get()
}

// SetRawTail force-sets the raw tail, used only when a freshly rotated
// partition's starting term id/offset must be pinned (construction, tests).
func (a *Appender) SetRawTail(termID int32) {
	a.tailCounter.Set(logbuffer.PackTail(termID, 0))
}

// Claim reserves length bytes of payload (frame_length = length +
// HeaderLength) using the lock-free retry loop of §4.3. On success, claim
// is filled in and result.Code holds the new term offset just past the
// claimed frame. On a trip, result.Code is ResultTripped and claim is left
// untouched; the caller must rotate and retry.
func (a *Appender) Claim(result *ClaimResult, length int32, claim *BufferClaim, reserved ReservedValueSupplier) error {
	frameLength := length + logbuffer.HeaderLength
	termLength := a.termBuffer.Capacity()
	if length <= 0 || frameLength > termLength {
		return logbuffer.ErrInvalidFrameLength
	}
	alignedLength := util.AlignInt32(frameLength, logbuffer.FrameAlignment)

	lastRawTail := int64(math.MinInt64)
	spins := 0

	for {
		rawTail := a.tailCounter.Get()
		if rawTail == lastRawTail {
			spins++
		} else {
			lastRawTail = rawTail
			spins = 0
		}

		termOffset := logbuffer.TermOffset(rawTail)
		termID := logbuffer.TermID(rawTail)
		resultingOffset := termOffset + alignedLength

		if resultingOffset > termLength {
			a.tailCounter.GetAndAddInt64(int64(alignedLength))
			result.TermID = termID
			result.Code = handleEndOfTerm(a.termBuffer, &a.headerWriter, termOffset, termID, termLength)
			return nil
		}

		if a.termBuffer.CompareAndSwapInt32(termOffset, 0, -frameLength) {
			a.tailCounter.SetPlain(rawTail + int64(alignedLength))
			a.headerWriter.write(a.termBuffer, termOffset, frameLength, termID)
			claim.wrap(a.termBuffer, termOffset, frameLength, termID, reserved)
			result.TermID = termID
			result.Code = int64(termOffset + alignedLength)
			return nil
		}

		if spins > a.spinLimitBeforeUnblock {
			// The producer that CAS'd this slot wrote -frameLength but
			// never advanced the tail; reclaim the slot so the ring keeps
			// moving. The stalled producer's eventual Commit/Abort (if it
			// ever wakes up) will then corrupt whatever claimed this
			// offset next -- an accepted limitation of process-death
			// recovery (see the module's Non-goals).
			logbuffer.FrameLengthOrdered(a.termBuffer, termOffset, 0)
			if a.onStall != nil {
				a.onStall(termID, termOffset)
			}
			spins = 0
		}

		runtime.Gosched()
	}
}

// handleEndOfTerm writes the end-of-term padding frame (if any slack
// remains) and reports whether the term tripped or genuinely failed.
func handleEndOfTerm(termBuffer *atomic.Buffer, header *headerWriter, termOffset, termID, termLength int32) int64 {
	if termOffset > termLength {
		return ResultFailed
	}

	if termOffset < termLength {
		paddingLength := termLength - termOffset
		header.write(termBuffer, termOffset, paddingLength, termID)
		logbuffer.SetFrameType(termBuffer, termOffset, logbuffer.FrameTypePad)
		logbuffer.FrameLengthOrdered(termBuffer, termOffset, paddingLength)
	}

	return ResultTripped
}

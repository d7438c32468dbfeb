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

package term

import (
	"github.com/aeron-go/logbuffers/aeron/atomic"
	"github.com/aeron-go/logbuffers/aeron/logbuffer"
	"github.com/aeron-go/logbuffers/aeron/util"
)

// FragmentHandler is invoked for each committed, non-padding frame a Scan
// encounters. payload aliases shared memory and is only valid for the
// duration of the call.
type FragmentHandler func(payload []byte, header logbuffer.FrameHeader)

// Scan performs a single-consumer block scan of termBuffer starting at
// termOffset, invoking handler for each committed data frame (§4.5).
// It stops after fragmentLimit fragments, at the first not-yet-visible
// frame (frame_length <= 0), or at the end of the term. It returns the
// number of bytes traversed (always a multiple of FrameAlignment) and the
// number of fragments delivered to handler.
func Scan(termBuffer *atomic.Buffer, termOffset int32, fragmentLimit int, handler FragmentHandler) (bytesRead int32, fragments int) {
	termLength := termBuffer.Capacity()
	offset := termOffset

	for fragments < fragmentLimit && offset < termLength {
		frameLength := logbuffer.FrameLengthVolatile(termBuffer, offset)
		if frameLength <= 0 {
			break
		}

		if logbuffer.FrameType(termBuffer, offset) != logbuffer.FrameTypePad {
			header := logbuffer.ReadFrameHeader(termBuffer, offset)
			header.FrameLength = frameLength
			payload := termBuffer.Slice(offset+logbuffer.HeaderLength, frameLength-logbuffer.HeaderLength)
			handler(payload, header)
			fragments++
		}

		offset += util.AlignInt32(frameLength, logbuffer.FrameAlignment)
	}

	return offset - termOffset, fragments
}

// GapInfo describes a gap found by ScanForGap: a region within [gapBegin,
// gapBegin+gapLength) of termID that holds no visible frame, discovered
// between the end of the contiguous run of committed frames and the
// caller-supplied high-water mark.
type GapInfo struct {
	TermID    int32
	GapBegin  int32
	GapLength int32
}

// ScanForGap is the diagnostic gap scanner of §4.5: starting at
// rebuildOffset it walks contiguous committed frames until it finds a
// frame_length of exactly zero (never-written), then reports the region up
// to highWaterMark as a gap if one exists. It does not invoke any
// fragment handler and never advances past an in-progress (negative
// length) frame into the interior of the log.
func ScanForGap(termBuffer *atomic.Buffer, termID int32, rebuildOffset int32, highWaterMark int32) *GapInfo {
	offset := rebuildOffset

	for offset < highWaterMark {
		frameLength := logbuffer.FrameLengthVolatile(termBuffer, offset)
		if frameLength == 0 {
			break
		}
		if frameLength < 0 {
			// reservation in progress; the frame hasn't been zeroed so it
			// isn't a "true" gap, but it also isn't safely scannable yet.
			return nil
		}
		offset += util.AlignInt32(frameLength, logbuffer.FrameAlignment)
	}

	if offset >= highWaterMark {
		return nil
	}

	return &GapInfo{
		TermID:    termID,
		GapBegin:  offset,
		GapLength: highWaterMark - offset,
	}
}

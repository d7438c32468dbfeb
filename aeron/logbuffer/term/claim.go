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
)

// ReservedValueSupplier lets a caller stamp an application-defined value
// (sequence number, timestamp, checksum, ...) into a frame's reserved_value
// field at commit time.
type ReservedValueSupplier func(termBuffer *atomic.Buffer, termOffset, frameLength int32) int64

// DefaultReservedValueSupplier always returns 0.
var DefaultReservedValueSupplier ReservedValueSupplier = func(*atomic.Buffer, int32, int32) int64 { return 0 }

// BufferClaim is a reserved, not-yet-committed byte range inside a term.
// Buffer() exposes exactly the claimed payload; the view it returns is only
// valid until Commit or Abort is called, matching §9's buffer-view
// lifetime contract.
type BufferClaim struct {
	termBuffer  *atomic.Buffer
	offset      int32
	frameLength int32
	reserved    ReservedValueSupplier
	termID      int32
}

func (c *BufferClaim) wrap(termBuffer *atomic.Buffer, offset, frameLength, termID int32, reserved ReservedValueSupplier) {
	c.termBuffer = termBuffer
	c.offset = offset
	c.frameLength = frameLength
	c.termID = termID
	c.reserved = reserved
}

// TermID returns the term the claim was taken in.
func (c *BufferClaim) TermID() int32 {
	return c.termID
}

// TermOffset returns the frame's starting offset within its term.
func (c *BufferClaim) TermOffset() int32 {
	return c.offset
}

// Buffer returns the claimed payload, excluding the frame header. The
// returned slice aliases shared memory and is invalidated by Commit/Abort.
func (c *BufferClaim) Buffer() []byte {
	return c.termBuffer.Slice(c.offset+logbuffer.HeaderLength, c.frameLength-logbuffer.HeaderLength)
}

// Commit publishes the frame: the reserved-value supplier runs, then
// frame_length is written with release ordering, making the frame visible
// to the reader. Never fails; it returns error to match the claim/commit
// shape of the public API.
func (c *BufferClaim) Commit() error {
	var reserved int64
	if c.reserved != nil {
		reserved = c.reserved(c.termBuffer, c.offset, c.frameLength)
	}
	c.termBuffer.PutInt64(c.offset+logbuffer.DataFrameHeader.ReservedValueFieldOffset, reserved)
	logbuffer.FrameLengthOrdered(c.termBuffer, c.offset, c.frameLength)
	return nil
}

// Abort discards the claim: the frame is rewritten as padding (type=PAD)
// and then published, so the reader skips it without ever seeing payload
// that was never meant to be read.
func (c *BufferClaim) Abort() error {
	logbuffer.SetFrameType(c.termBuffer, c.offset, logbuffer.FrameTypePad)
	logbuffer.FrameLengthOrdered(c.termBuffer, c.offset, c.frameLength)
	return nil
}

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

// Package logbuffer implements the frame protocol, the mapped/partitioned
// log region, and the rotation/cleaning state machine described for the
// Aeron-derived append log. Term claim/commit and scanning live in the
// sibling package logbuffer/term.
package logbuffer

import "github.com/aeron-go/logbuffers/aeron/atomic"

// Frame type constants.
const (
	FrameTypePad  int16 = 0x00
	FrameTypeData int16 = 0x01
	FrameTypeSM   int16 = 0x03
)

// DataFrameHeader describes the fixed 32-byte frame header layout and field
// offsets, little-endian, relative to the start of the frame.
var DataFrameHeader = struct {
	FrameLengthFieldOffset   int32
	VersionFieldOffset       int32
	FlagsFieldOffset         int32
	TypeFieldOffset          int32
	TermOffsetFieldOffset    int32
	SessionIDFieldOffset     int32
	StreamIDFieldOffset      int32
	TermIDFieldOffset        int32
	ReservedValueFieldOffset int32

	Length         int32
	CurrentVersion int8

	TypePad  int16
	TypeData int16
	TypeSM   int16
}{
	FrameLengthFieldOffset:   0,
	VersionFieldOffset:       4,
	FlagsFieldOffset:         5,
	TypeFieldOffset:          6,
	TermOffsetFieldOffset:    8,
	SessionIDFieldOffset:     12,
	StreamIDFieldOffset:      16,
	TermIDFieldOffset:        20,
	ReservedValueFieldOffset: 24,

	Length:         32,
	CurrentVersion: 0,

	TypePad:  FrameTypePad,
	TypeData: FrameTypeData,
	TypeSM:   FrameTypeSM,
}

// HeaderLength is the fixed frame header size in bytes.
const HeaderLength = 32

// FrameAlignment is the byte alignment every frame start/length must honor.
const FrameAlignment = 32

// FrameHeader is a read-only view over a committed frame's header fields,
// handed to OnAppend callbacks alongside the payload.
type FrameHeader struct {
	FrameLength   int32
	Version       int8
	Flags         uint8
	Type          int16
	TermOffset    int32
	SessionID     int32
	StreamID      int32
	TermID        int32
	ReservedValue int64
}

// ReadFrameHeader decodes the header at offset in buf. The frame_length
// field is read with plain semantics; callers that need the acquire-ordered
// read for visibility must call FrameLengthVolatile themselves first.
func ReadFrameHeader(buf *atomic.Buffer, offset int32) FrameHeader {
	return FrameHeader{
		FrameLength:   buf.GetInt32(offset + DataFrameHeader.FrameLengthFieldOffset),
		Version:       buf.GetInt8(offset + DataFrameHeader.VersionFieldOffset),
		Flags:         buf.GetUInt8(offset + DataFrameHeader.FlagsFieldOffset),
		Type:          int16(buf.GetUInt16(offset + DataFrameHeader.TypeFieldOffset)),
		TermOffset:    buf.GetInt32(offset + DataFrameHeader.TermOffsetFieldOffset),
		SessionID:     buf.GetInt32(offset + DataFrameHeader.SessionIDFieldOffset),
		StreamID:      buf.GetInt32(offset + DataFrameHeader.StreamIDFieldOffset),
		TermID:        buf.GetInt32(offset + DataFrameHeader.TermIDFieldOffset),
		ReservedValue: buf.GetInt64(offset + DataFrameHeader.ReservedValueFieldOffset),
	}
}

// FrameLengthVolatile reads frame_length with acquire ordering. A value
// <= 0 means the frame is still being reserved/written and is not yet
// visible to a reader.
func FrameLengthVolatile(buf *atomic.Buffer, offset int32) int32 {
	return buf.GetInt32Volatile(offset + DataFrameHeader.FrameLengthFieldOffset)
}

// FrameLengthOrdered publishes frame_length with release ordering. This is
// the single write that makes a frame visible to the reader.
func FrameLengthOrdered(buf *atomic.Buffer, offset int32, length int32) {
	buf.PutInt32Ordered(offset+DataFrameHeader.FrameLengthFieldOffset, length)
}

// SetFrameType overwrites a frame's type field in place, used by
// BufferClaim.Abort to turn a reserved data frame into a padding frame
// before it is committed.
func SetFrameType(buf *atomic.Buffer, offset int32, frameType int16) {
	buf.PutUInt16(offset+DataFrameHeader.TypeFieldOffset, uint16(frameType))
}

// FrameType reads a frame's type field.
func FrameType(buf *atomic.Buffer, offset int32) int16 {
	return int16(buf.GetUInt16(offset + DataFrameHeader.TypeFieldOffset))
}

// FrameFlags overwrites a frame's flags field in place.
func FrameFlags(buf *atomic.Buffer, offset int32, flags uint8) {
	buf.PutUInt8(offset+DataFrameHeader.FlagsFieldOffset, flags)
}

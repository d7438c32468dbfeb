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

package logbuffer

import "github.com/aeron-go/logbuffers/aeron/util"

// PartitionCount is the fixed number of rotating partitions (P in the
// spec): one active, one dirty, one clean/cleaning at any instant.
const PartitionCount = 3

// Term length bounds. Term length must be a power of two in this range.
const (
	TermMinLength int32 = 64 * 1024
	TermMaxLength int32 = 1<<31 - FrameAlignment
)

// TermMetadataLength is the page-aligned size of each per-term metadata
// block. 4 KiB comfortably covers the raw tail counter, status word and
// padding to avoid false sharing between terms.
const TermMetadataLength int64 = 4096

// LogMetadataLength is the size of the single trailing log metadata block.
const LogMetadataLength int64 = 4096

// Term metadata field offsets.
const (
	// termTailCounterOffset holds the raw tail: (term_id << 32) | tail_offset.
	termTailCounterOffset int32 = 0
	// termStatusOffset holds one of PartitionStatus*.
	termStatusOffset int32 = 8
)

// Partition status values, stored in each term metadata block.
const (
	PartitionStatusClean int32 = 0
	PartitionStatusNeedsCleaning int32 = 1
	PartitionStatusInUse int32 = 2
)

// Log metadata field offsets.
const (
	logActivePartitionIndexOffset int32 = 0
	logInitialTermIDOffset        int32 = 4
	logTermLengthOffset           int32 = 8
	logPageSizeOffset             int32 = 12
	logSpinLimitOffset            int32 = 16
	logPollFragmentLimitOffset    int32 = 20
	logCreatedOffset              int32 = 24
	// logDefaultFrameHeaderOffset is the start of a HeaderLength-byte
	// template whose session id and stream id every freshly claimed frame
	// inherits, alongside the per-claim term_offset/term_id.
	logDefaultFrameHeaderOffset int32 = 64
)

// TermID extracts the term identifier from a packed raw tail value.
func TermID(rawTail int64) int32 {
	return int32(rawTail >> 32)
}

// TermOffset extracts the tail offset from a packed raw tail value.
func TermOffset(rawTail int64) int32 {
	return int32(rawTail & 0xFFFFFFFF)
}

// PackTail packs a term id and tail offset into a raw tail value.
func PackTail(termID int32, offset int32) int64 {
	return (int64(termID) << 32) | int64(uint32(offset))
}

// ComputeTermIDFromPosition derives the term id a stream position falls in.
func ComputeTermIDFromPosition(position int64, positionBitsToShift uint, initialTermID int32) int32 {
	return initialTermID + int32(position>>positionBitsToShift)
}

// ComputeTermOffsetFromPosition derives the within-term offset of a stream
// position.
func ComputeTermOffsetFromPosition(position int64, positionBitsToShift uint) int32 {
	mask := (int64(1) << positionBitsToShift) - 1
	return int32(position & mask)
}

// ComputePosition computes the monotonic stream coordinate for a given term
// id and within-term offset (invariant 5 in the spec).
func ComputePosition(termID int32, termOffset int32, positionBitsToShift uint, initialTermID int32) int64 {
	termCount := int64(termID - initialTermID)
	return (termCount << positionBitsToShift) + int64(termOffset)
}

// PositionBitsToShift returns the shift amount for a power-of-two term
// length, i.e. log2(termLength).
func PositionBitsToShift(termLength int32) uint {
	return uint(util.NumberOfTrailingZeros(termLength))
}

// IndexByTerm computes which of the PartitionCount partitions holds a given
// term id, given the term id that was active at the very first position.
func IndexByTerm(initialTermID, activeTermID int32) int32 {
	return (activeTermID - initialTermID) % PartitionCount
}

// RotateIndex returns the next partition index, cycling through the fixed
// ring of PartitionCount partitions.
func RotateIndex(index int32) int32 {
	return (index + 1) % PartitionCount
}

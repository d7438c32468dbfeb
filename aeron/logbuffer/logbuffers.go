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

import (
	"fmt"
	"os"
	"time"

	"github.com/aeron-go/logbuffers/aeron/atomic"
	"github.com/aeron-go/logbuffers/aeron/flyweight"
	"github.com/aeron-go/logbuffers/aeron/util"
	"github.com/aeron-go/logbuffers/internal/mmap"
)

// Meta is the typed view over the log metadata block plus the per-partition
// fields that live in each term's own metadata block.
type Meta struct {
	TailCounter [PartitionCount]flyweight.Int64Field
	Status      [PartitionCount]flyweight.Int32Field

	ActivePartitionIndex flyweight.Int32Field
	InitialTermID        flyweight.Int32Field
	TermLength           flyweight.Int32Field
	PageSize             flyweight.Int32Field
	SpinLimit            flyweight.Int32Field
	PollFragmentLimit    flyweight.Int32Field

	DefaultFrameHeader *atomic.Buffer
}

// LogBuffers owns the memory-mapped log file and the per-partition views
// carved out of it: P term buffers, P term metadata blocks and one log
// metadata block (§4.2).
type LogBuffers struct {
	region *mmap.Region

	termBuffers  [PartitionCount]*atomic.Buffer
	termMetadata [PartitionCount]*atomic.Buffer
	logMetadata  *atomic.Buffer

	meta       *Meta
	termLength int32
}

// OpenLogBuffers maps path (creating it if absent) and partitions it into
// PartitionCount term buffers, PartitionCount term metadata blocks and one
// log metadata block. termLength must be a power of two within
// [TermMinLength, TermMaxLength]; a freshly created file is stamped with
// the log metadata, an existing file's metadata is trusted as-is.
func OpenLogBuffers(path string, termLength int32, opts ...Option) (*LogBuffers, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if !util.IsPowerOfTwo(int64(termLength)) || termLength < TermMinLength || termLength > TermMaxLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTermLength, termLength)
	}

	total := int64(PartitionCount)*(int64(termLength)+TermMetadataLength) + LogMetadataLength
	if total >= 1<<31 {
		return nil, ErrLogTooLarge
	}

	region, err := mmap.OpenOrCreate(path, total)
	if err != nil {
		return nil, err
	}

	lb := &LogBuffers{region: region, termLength: termLength}

	data := region.Bytes()
	var offset int64
	for i := 0; i < PartitionCount; i++ {
		buf := new(atomic.Buffer)
		buf.WrapSlice(data[offset : offset+int64(termLength)])
		lb.termBuffers[i] = buf
		offset += int64(termLength)
	}
	for i := 0; i < PartitionCount; i++ {
		buf := new(atomic.Buffer)
		buf.WrapSlice(data[offset : offset+TermMetadataLength])
		lb.termMetadata[i] = buf
		offset += TermMetadataLength
	}
	logMetaBuf := new(atomic.Buffer)
	logMetaBuf.WrapSlice(data[offset : offset+LogMetadataLength])
	lb.logMetadata = logMetaBuf

	if err := lb.checkAlignment(); err != nil {
		region.Close()
		return nil, err
	}

	lb.meta = lb.buildMeta()

	if region.Created {
		lb.stampFreshMetadata(termLength, options)
	}

	return lb, nil
}

func (lb *LogBuffers) checkAlignment() error {
	for _, buf := range lb.termMetadata {
		if uintptr(buf.Ptr())%8 != 0 {
			return ErrNotAligned
		}
	}
	if uintptr(lb.logMetadata.Ptr())%8 != 0 {
		return ErrNotAligned
	}
	return nil
}

func (lb *LogBuffers) buildMeta() *Meta {
	m := &Meta{
		ActivePartitionIndex: flyweight.WrapInt32Field(lb.logMetadata, logActivePartitionIndexOffset),
		InitialTermID:        flyweight.WrapInt32Field(lb.logMetadata, logInitialTermIDOffset),
		TermLength:           flyweight.WrapInt32Field(lb.logMetadata, logTermLengthOffset),
		PageSize:             flyweight.WrapInt32Field(lb.logMetadata, logPageSizeOffset),
		SpinLimit:            flyweight.WrapInt32Field(lb.logMetadata, logSpinLimitOffset),
		PollFragmentLimit:    flyweight.WrapInt32Field(lb.logMetadata, logPollFragmentLimitOffset),
		DefaultFrameHeader:   lb.logMetadata.SubBuffer(logDefaultFrameHeaderOffset, HeaderLength),
	}
	for i := 0; i < PartitionCount; i++ {
		m.TailCounter[i] = flyweight.WrapInt64Field(lb.termMetadata[i], termTailCounterOffset)
		m.Status[i] = flyweight.WrapInt32Field(lb.termMetadata[i], termStatusOffset)
	}
	return m
}

func (lb *LogBuffers) stampFreshMetadata(termLength int32, options options) {
	m := lb.meta
	initialTermID := options.initialTermID
	m.InitialTermID.Set(initialTermID)
	m.TermLength.Set(termLength)
	m.PageSize.Set(int32(os.Getpagesize()))
	m.SpinLimit.Set(int32(options.spinLimitBeforeUnblock))
	m.PollFragmentLimit.Set(int32(options.pollFragmentLimit))
	m.ActivePartitionIndex.Set(0)

	for i := 0; i < PartitionCount; i++ {
		termID := initialTermID + int32(i)
		m.TailCounter[i].Set(PackTail(termID, 0))
		if i == 0 {
			m.Status[i].Set(PartitionStatusInUse)
		} else {
			m.Status[i].Set(PartitionStatusClean)
		}
	}

	header := options.defaultFrameHeader
	if len(header) > int(HeaderLength) {
		header = header[:HeaderLength]
	}
	lb.logMetadata.PutRawBytes(logDefaultFrameHeaderOffset, header)
	lb.logMetadata.PutInt64(logCreatedOffset, time.Now().Unix())
}

// Buffer returns the term buffer for partitionIndex.
func (lb *LogBuffers) Buffer(partitionIndex int) *atomic.Buffer {
	return lb.termBuffers[partitionIndex]
}

// TermMetadata returns the term metadata block for partitionIndex.
func (lb *LogBuffers) TermMetadata(partitionIndex int) *atomic.Buffer {
	return lb.termMetadata[partitionIndex]
}

// Meta returns the typed metadata accessor.
func (lb *LogBuffers) Meta() *Meta {
	return lb.meta
}

// TermLength returns the configured term length.
func (lb *LogBuffers) TermLength() int32 {
	return lb.termLength
}

// PositionBitsToShift returns log2(termLength), used to translate between
// (term id, term offset) pairs and the flat stream position.
func (lb *LogBuffers) PositionBitsToShift() uint {
	return PositionBitsToShift(lb.termLength)
}

// Close releases the mapping. The LogBuffers must not be used afterward.
func (lb *LogBuffers) Close() error {
	return lb.region.Close()
}

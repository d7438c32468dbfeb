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

// Package flyweight provides zero-copy, fixed-offset field accessors over a
// shared atomic.Buffer, the same pattern aeron-go uses for metadata fields
// such as the per-term raw tail counter.
package flyweight

import "github.com/aeron-go/logbuffers/aeron/atomic"

// Int64Field is a flyweight over a single int64 slot at a fixed offset
// within a shared buffer.
type Int64Field struct {
	buffer *atomic.Buffer
	offset int32
}

// WrapInt64Field constructs a flyweight over buffer at offset.
func WrapInt64Field(buffer *atomic.Buffer, offset int32) Int64Field {
	return Int64Field{buffer: buffer, offset: offset}
}

// Get performs an acquire-ordered read.
func (f Int64Field) Get() int64 {
	return f.buffer.GetInt64Volatile(f.offset)
}

// Set performs a release-ordered write.
func (f Int64Field) Set(value int64) {
	f.buffer.PutInt64Ordered(f.offset, value)
}

// GetPlain performs a plain (non-atomic) read, valid only when the caller
// already holds a happens-before relationship with any writer.
func (f Int64Field) GetPlain() int64 {
	return f.buffer.GetInt64(f.offset)
}

// SetPlain performs a plain (non-atomic) write.
func (f Int64Field) SetPlain(value int64) {
	f.buffer.PutInt64(f.offset, value)
}

// GetAndAddInt64 atomically adds delta and returns the prior value.
func (f Int64Field) GetAndAddInt64(delta int64) int64 {
	return f.buffer.GetAndAddInt64(f.offset, delta)
}

// CompareAndSwap performs a 64-bit CAS.
func (f Int64Field) CompareAndSwap(old, new int64) bool {
	return f.buffer.CompareAndSwapInt64(f.offset, old, new)
}

// Int32Field is a flyweight over a single int32 slot at a fixed offset
// within a shared buffer.
type Int32Field struct {
	buffer *atomic.Buffer
	offset int32
}

// WrapInt32Field constructs a flyweight over buffer at offset.
func WrapInt32Field(buffer *atomic.Buffer, offset int32) Int32Field {
	return Int32Field{buffer: buffer, offset: offset}
}

// Get performs an acquire-ordered read.
func (f Int32Field) Get() int32 {
	return f.buffer.GetInt32Volatile(f.offset)
}

// Set performs a release-ordered write.
func (f Int32Field) Set(value int32) {
	f.buffer.PutInt32Ordered(f.offset, value)
}

// CompareAndSwap performs a 32-bit CAS.
func (f Int32Field) CompareAndSwap(old, new int32) bool {
	return f.buffer.CompareAndSwapInt32(f.offset, old, new)
}

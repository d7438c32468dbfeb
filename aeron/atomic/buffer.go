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

// Package atomic provides a thin, unsafe-pointer-backed view over a shared
// memory region with volatile/ordered accessors. It assumes a little-endian,
// word-addressable host (amd64/arm64), the same assumption the Aeron wire
// format itself makes.
package atomic

import (
	"sync/atomic"
	"unsafe"
)

// Buffer wraps a byte slice backed by shared (possibly mmap'd) memory and
// exposes volatile/ordered primitive accessors on top of it. It never
// allocates or copies the wrapped region.
type Buffer struct {
	ptr unsafe.Pointer
	len int32
}

// Wrap points the buffer at an externally owned region. The caller retains
// ownership of the backing memory's lifetime.
func (b *Buffer) Wrap(ptr unsafe.Pointer, length int32) {
	b.ptr = ptr
	b.len = length
}

// WrapSlice points the buffer at a byte slice's backing array.
func (b *Buffer) WrapSlice(buf []byte) {
	if len(buf) == 0 {
		b.ptr = nil
		b.len = 0
		return
	}
	b.ptr = unsafe.Pointer(&buf[0])
	b.len = int32(len(buf))
}

// Ptr returns the raw pointer to the wrapped region.
func (b *Buffer) Ptr() unsafe.Pointer {
	return b.ptr
}

// Capacity returns the length in bytes of the wrapped region.
func (b *Buffer) Capacity() int32 {
	return b.len
}

func (b *Buffer) at(offset int32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(b.ptr) + uintptr(offset))
}

// GetInt32 performs a plain (non-atomic) 32-bit read.
func (b *Buffer) GetInt32(offset int32) int32 {
	return *(*int32)(b.at(offset))
}

// PutInt32 performs a plain (non-atomic) 32-bit write.
func (b *Buffer) PutInt32(offset int32, value int32) {
	*(*int32)(b.at(offset)) = value
}

// GetInt32Volatile performs an acquire-ordered 32-bit read.
func (b *Buffer) GetInt32Volatile(offset int32) int32 {
	return atomic.LoadInt32((*int32)(b.at(offset)))
}

// PutInt32Ordered performs a release-ordered 32-bit write.
func (b *Buffer) PutInt32Ordered(offset int32, value int32) {
	atomic.StoreInt32((*int32)(b.at(offset)), value)
}

// CompareAndSwapInt32 performs a 32-bit CAS with full fence semantics.
func (b *Buffer) CompareAndSwapInt32(offset int32, old, new int32) bool {
	return atomic.CompareAndSwapInt32((*int32)(b.at(offset)), old, new)
}

// GetInt64 performs a plain (non-atomic) 64-bit read.
func (b *Buffer) GetInt64(offset int32) int64 {
	return *(*int64)(b.at(offset))
}

// PutInt64 performs a plain (non-atomic) 64-bit write.
func (b *Buffer) PutInt64(offset int32, value int64) {
	*(*int64)(b.at(offset)) = value
}

// GetInt64Volatile performs an acquire-ordered 64-bit read.
func (b *Buffer) GetInt64Volatile(offset int32) int64 {
	return atomic.LoadInt64((*int64)(b.at(offset)))
}

// PutInt64Ordered performs a release-ordered 64-bit write.
func (b *Buffer) PutInt64Ordered(offset int32, value int64) {
	atomic.StoreInt64((*int64)(b.at(offset)), value)
}

// GetAndAddInt64 atomically adds delta to the 64-bit value at offset and
// returns the value that was there before the add.
func (b *Buffer) GetAndAddInt64(offset int32, delta int64) int64 {
	return atomic.AddInt64((*int64)(b.at(offset)), delta) - delta
}

// CompareAndSwapInt64 performs a 64-bit CAS with full fence semantics.
func (b *Buffer) CompareAndSwapInt64(offset int32, old, new int64) bool {
	return atomic.CompareAndSwapInt64((*int64)(b.at(offset)), old, new)
}

// GetInt8 reads a single byte.
func (b *Buffer) GetInt8(offset int32) int8 {
	return *(*int8)(b.at(offset))
}

// PutInt8 writes a single byte.
func (b *Buffer) PutInt8(offset int32, value int8) {
	*(*int8)(b.at(offset)) = value
}

// GetUInt8 reads a single unsigned byte.
func (b *Buffer) GetUInt8(offset int32) uint8 {
	return *(*uint8)(b.at(offset))
}

// PutUInt8 writes a single unsigned byte.
func (b *Buffer) PutUInt8(offset int32, value uint8) {
	*(*uint8)(b.at(offset)) = value
}

// GetUInt16 reads an unsigned 16-bit value.
func (b *Buffer) GetUInt16(offset int32) uint16 {
	return *(*uint16)(b.at(offset))
}

// PutUInt16 writes an unsigned 16-bit value.
func (b *Buffer) PutUInt16(offset int32, value uint16) {
	*(*uint16)(b.at(offset)) = value
}

// PutBytes copies length bytes from src (at srcOffset) into the buffer at
// offset.
func (b *Buffer) PutBytes(offset int32, src *Buffer, srcOffset, length int32) {
	dst := unsafe.Slice((*byte)(b.at(offset)), length)
	source := unsafe.Slice((*byte)(src.at(srcOffset)), length)
	copy(dst, source)
}

// PutRawBytes copies a plain Go byte slice into the buffer at offset.
func (b *Buffer) PutRawBytes(offset int32, src []byte) {
	if len(src) == 0 {
		return
	}
	dst := unsafe.Slice((*byte)(b.at(offset)), len(src))
	copy(dst, src)
}

// SubBuffer returns a new Buffer that wraps the [offset, offset+length)
// sub-region of b. The returned Buffer shares the same backing memory.
func (b *Buffer) SubBuffer(offset, length int32) *Buffer {
	sub := new(Buffer)
	sub.Wrap(b.at(offset), length)
	return sub
}

// Slice returns a Go byte slice view over [offset, offset+length) of the
// wrapped region. The slice is only valid for as long as the backing memory
// remains mapped.
func (b *Buffer) Slice(offset, length int32) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(b.at(offset)), length)
}

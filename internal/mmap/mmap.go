// Package mmap provides a fixed-size, zero-initialized shared byte region
// backed by a regular file, the memory-mapping facility the logbuffer
// package is built on top of.
package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Region is a memory-mapped file of a fixed length.
type Region struct {
	file   *os.File
	data   []byte
	length int64

	// Created reports whether this call initialized a brand new,
	// zero-filled file rather than reopening an existing one.
	Created bool
}

// OpenOrCreate opens path if it exists and is already the requested length,
// or creates it (or sizes an empty file) with Truncate, then maps the whole
// file read/write and shared across processes. An existing non-empty file
// of any other length is an error.
func OpenOrCreate(path string, length int64) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: stat %s: %w", path, err)
	}

	created := info.Size() == 0
	if created {
		if err := f.Truncate(length); err != nil {
			f.Close()
			return nil, fmt.Errorf("mmap: truncate %s: %w", path, err)
		}
	} else if info.Size() != length {
		f.Close()
		return nil, fmt.Errorf("mmap: %s is %d bytes, expected %d", path, info.Size(), length)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: mmap %s: %w", path, err)
	}

	return &Region{file: f, data: data, length: length, Created: created}, nil
}

// Bytes returns the whole mapped region.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the length in bytes of the mapped region.
func (r *Region) Len() int64 {
	return r.length
}

// Sync flushes dirty pages to the backing file, blocking until durable.
func (r *Region) Sync() error {
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmap: msync: %w", err)
	}
	return nil
}

// Close unmaps the region and closes the backing file descriptor.
func (r *Region) Close() error {
	var firstErr error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			firstErr = fmt.Errorf("mmap: munmap: %w", err)
		}
		r.data = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mmap: close: %w", err)
		}
		r.file = nil
	}
	return firstErr
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package traceblob provides refcounted, read-only views over raw trace bytes.
//
// A Blob owns a buffer. Every View created from it, or sliced or copied from
// another View, holds a counted reference to the Blob, and the Blob is released
// exactly once, when the last reference is dropped. No View is privileged as the
// owner. The bytes of a Blob must not be modified once it has been created.
package traceblob // import "go.opentelemetry.io/profile-ingest/traceblob"

import (
	"fmt"
	"sync/atomic"
)

// dead marks the refcount of a released Blob.
const dead = -1 << 30

// Blob owns a contiguous byte buffer. It is handed around by pointer and must
// only be wrapped by Views, never copied.
type Blob struct {
	data []byte
	size int

	// refs counts the Views referencing this Blob. It starts at 0 and is set to
	// dead once the Blob is being released, after which it is never raised.
	refs atomic.Int32

	// released is set once the buffer has been handed back.
	released atomic.Bool

	// release is called once, when the last reference has been dropped.
	release func()
}

// NewBlob takes ownership of data. The caller must not modify data afterwards.
func NewBlob(data []byte) *Blob {
	return NewBlobWithRelease(data, nil)
}

// NewBlobWithRelease is like NewBlob, but additionally calls release once the
// Blob is no longer referenced. This allows wrapping memory that is not managed
// by the Go runtime, e.g. a memory mapped file.
func NewBlobWithRelease(data []byte, release func()) *Blob {
	counters.allocated.Add(1)
	counters.allocatedBytes.Add(uint64(len(data)))
	return &Blob{data: data, size: len(data), release: release}
}

// Size returns the length of the Blob in bytes.
func (b *Blob) Size() int {
	return b.size
}

// Refs returns the number of Views currently referencing the Blob.
func (b *Blob) Refs() int32 {
	return max(b.refs.Load(), 0)
}

// Released reports whether the Blob has been released.
func (b *Blob) Released() bool {
	return b.released.Load()
}

// Discard releases a Blob that was never wrapped in a View. Once Views reference
// the Blob they own it and Discard does nothing.
func (b *Blob) Discard() {
	if b.refs.CompareAndSwap(0, dead) {
		b.free()
	}
}

// tryAcquire takes a reference unless the Blob is already being released.
func (b *Blob) tryAcquire() bool {
	for {
		n := b.refs.Load()
		if n < 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (b *Blob) releaseRef() {
	n := b.refs.Add(-1)
	switch {
	case n == 0:
		// A concurrent tryAcquire may have revived the Blob in between.
		if b.refs.CompareAndSwap(0, dead) {
			b.free()
		}
	case n < 0:
		// Views drop their reference at most once, so this is a bookkeeping bug.
		panic(fmt.Sprintf("traceblob: negative refcount %d", n))
	}
}

func (b *Blob) free() {
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	counters.released.Add(1)
	counters.releasedBytes.Add(uint64(len(b.data)))
	b.data = nil
	if b.release != nil {
		b.release()
	}
}

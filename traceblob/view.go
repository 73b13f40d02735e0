// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package traceblob // import "go.opentelemetry.io/profile-ingest/traceblob"

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// WholeBlob requests a View that extends to the end of the Blob.
const WholeBlob = -1

var (
	// ErrRange is returned when a requested range is not contained in its parent.
	ErrRange = errors.New("range out of bounds")

	// ErrReleased is returned when operating on a View whose reference was dropped.
	ErrReleased = errors.New("view already released")
)

// reference is a single counted reference to a Blob. Go copies of a View share
// the same reference, so it is dropped at most once.
type reference struct {
	blob    *Blob
	dropped atomic.Bool
}

// newReference takes a reference to b. It returns nil if b has been released.
func newReference(b *Blob) *reference {
	if !b.tryAcquire() {
		return nil
	}
	return &reference{blob: b}
}

func (r *reference) drop() bool {
	if r.dropped.CompareAndSwap(false, true) {
		r.blob.releaseRef()
		return true
	}
	return false
}

func (r *reference) live() bool {
	return r != nil && !r.dropped.Load()
}

// View is a read-only window into a Blob. The zero value is an empty View that
// references nothing.
//
// Assigning a View does not take a new reference. Use Copy or Slice to obtain
// an independently releasable handle and Move to hand a reference over.
type View struct {
	data []byte
	ref  *reference
}

// NewView returns a View on blob covering [offset, offset+length). A length of
// WholeBlob extends the View to the end of the Blob.
func NewView(blob *Blob, offset, length int) (View, error) {
	if blob == nil {
		return View{}, ErrReleased
	}
	size := blob.Size()
	if length == WholeBlob {
		length = size - offset
	}
	if offset < 0 || length < 0 || offset > size || length > size-offset {
		return View{}, fmt.Errorf("view [%d, +%d) of blob with %d bytes: %w",
			offset, length, size, ErrRange)
	}
	ref := newReference(blob)
	if ref == nil {
		return View{}, ErrReleased
	}
	end := offset + length
	return View{data: blob.data[offset:end:end], ref: ref}, nil
}

// Data returns the bytes covered by the View. The returned slice must not be
// modified and must not be used after the View has been released.
func (v View) Data() []byte {
	if !v.ref.live() {
		return nil
	}
	return v.data
}

// Len returns the number of bytes covered by the View.
func (v View) Len() int {
	if !v.ref.live() {
		return 0
	}
	return len(v.data)
}

// IsEmpty reports whether the View covers no bytes.
func (v View) IsEmpty() bool {
	return v.Len() == 0
}

// Blob returns the Blob backing the View or nil for an empty View.
func (v View) Blob() *Blob {
	if v.ref == nil {
		return nil
	}
	return v.ref.blob
}

// Slice returns a new View on [offset, offset+length) relative to this View.
// The new View holds its own reference to the Blob.
func (v View) Slice(offset, length int) (View, error) {
	if !v.ref.live() {
		return View{}, ErrReleased
	}
	if length == WholeBlob {
		length = len(v.data) - offset
	}
	if offset < 0 || length < 0 || offset > len(v.data) || length > len(v.data)-offset {
		return View{}, fmt.Errorf("slice [%d, +%d) of view with %d bytes: %w",
			offset, length, len(v.data), ErrRange)
	}
	ref := newReference(v.ref.blob)
	if ref == nil {
		return View{}, ErrReleased
	}
	end := offset + length
	return View{data: v.data[offset:end:end], ref: ref}, nil
}

// SliceData returns a new View covering sub, which must be a subslice of the
// bytes returned by Data.
func (v View) SliceData(sub []byte) (View, error) {
	if !v.ref.live() {
		return View{}, ErrReleased
	}
	if len(sub) == 0 {
		return v.Slice(0, 0)
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(v.data)))
	start := uintptr(unsafe.Pointer(unsafe.SliceData(sub)))
	if len(v.data) == 0 || start < base || start-base > uintptr(len(v.data)) {
		return View{}, fmt.Errorf("slice of %d bytes not within view: %w", len(sub), ErrRange)
	}
	return v.Slice(int(start-base), len(sub))
}

// Copy returns a new View on the same range that holds its own reference.
// No bytes are copied.
func (v View) Copy() View {
	if !v.ref.live() {
		return View{}
	}
	ref := newReference(v.ref.blob)
	if ref == nil {
		return View{}
	}
	return View{data: v.data, ref: ref}
}

// Move transfers the reference held by v to the returned View and leaves v
// empty. The refcount of the Blob is unchanged.
func (v *View) Move() View {
	moved := *v
	*v = View{}
	return moved
}

// Release drops the reference held by the View. The Blob is released when this
// was its last reference. Releasing an empty or already released View is a no-op.
func (v *View) Release() {
	if v.ref != nil {
		v.ref.drop()
	}
	*v = View{}
}

// Equal reports whether both Views cover the same bytes of the same Blob.
func (v View) Equal(other View) bool {
	if v.Blob() != other.Blob() || len(v.data) != len(other.data) {
		return false
	}
	return unsafe.SliceData(v.data) == unsafe.SliceData(other.data)
}

// String implements fmt.Stringer.
func (v View) String() string {
	return fmt.Sprintf("View{len: %d, refs: %d}", v.Len(), v.refs())
}

func (v View) refs() int32 {
	if v.ref == nil {
		return 0
	}
	return v.ref.blob.Refs()
}

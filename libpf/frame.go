// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/profile-ingest/libpf"

import (
	"encoding/binary"
	"unique"

	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/profile-ingest/libpf/basehash"
)

// MappingData represents a memory mapping of a profiled process.
type MappingData struct {
	// BuildID is the build ID of the mapped file, if any.
	BuildID String
	// Path is the path of the mapped file, joined from its interned components.
	Path String

	Start       Address
	End         Address
	StartOffset uint64
	LoadBias    uint64
	ExactOffset uint64
}

// Mapping is an interned MappingData reference.
type Mapping struct {
	value unique.Handle[MappingData]
}

// NewMapping interns given MappingData.
func NewMapping(data MappingData) Mapping {
	return Mapping{value: unique.Make(data)}
}

// Valid determines if the Mapping is valid.
func (m Mapping) Valid() bool {
	return m != Mapping{}
}

// Value returns the dereferenced MappingData.
// This can be done only if the Mapping is Valid.
func (m Mapping) Value() MappingData {
	return m.value.Value()
}

// Frame represents one resolved frame of a heap profile callstack.
type Frame struct {
	// FunctionName is the (possibly demangled) symbol name of the frame.
	FunctionName String
	// Mapping is the mapping the frame's program counter belongs to.
	Mapping Mapping
	// RelPC is the program counter relative to the start of the mapping.
	RelPC uint64
}

// Hash calculates a content hash of the frame that does not depend on
// the trace the frame was read from.
func (f *Frame) Hash() basehash.Hash128 {
	h := xxh3.New()
	f.hashTo(h)
	return basehash.FromUint128(h.Sum128())
}

func (f *Frame) hashTo(h *xxh3.Hasher) {
	var buf [8]byte
	_, _ = h.WriteString(f.FunctionName.String())
	_, _ = h.Write([]byte{0})
	if f.Mapping.Valid() {
		m := f.Mapping.Value()
		_, _ = h.WriteString(m.BuildID.String())
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(m.Path.String())
		_, _ = h.Write([]byte{0})
	}
	binary.LittleEndian.PutUint64(buf[:], f.RelPC)
	_, _ = h.Write(buf[:])
}

// Frames is a list of interned frames, outermost frame first.
type Frames []unique.Handle[Frame]

// Append interns and appends a frame to the slice of frames.
func (frames *Frames) Append(frame *Frame) {
	*frames = append(*frames, unique.Make(*frame))
}

// Hash calculates a content hash over all frames, in order.
func (frames Frames) Hash() basehash.Hash128 {
	h := xxh3.New()
	for _, frame := range frames {
		f := frame.Value()
		f.hashTo(h)
	}
	return basehash.FromUint128(h.Sum128())
}

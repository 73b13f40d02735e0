// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracereader // import "go.opentelemetry.io/profile-ingest/tracereader"

import (
	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/traceblob"
)

// Packet holds the decoded fields of a TracePacket.
type Packet struct {
	// Timestamp of the packet in nanoseconds, zero if absent.
	Timestamp uint64
	// SequenceID identifies the writer sequence the packet belongs to.
	SequenceID libpf.SequenceID
	// IncrementalStateCleared is set by the producer when previously interned
	// data of the sequence must be discarded.
	IncrementalStateCleared bool
	// Profile is nil if the packet does not carry a heap profile.
	Profile *ProfilePacket
}

// ProfilePacket is one chunk of a heap profile dump. A dump is spread over
// consecutive packets that all but the last have Continued set.
type ProfilePacket struct {
	Strings      []InternedString
	Mappings     []Mapping
	Frames       []Frame
	Callstacks   []Callstack
	ProcessDumps []ProcessHeapSamples
	Continued    bool
	// Index increases by one for each profile packet of a sequence.
	Index uint64
}

// InternedString binds an interning id to a string. Str references the packet
// bytes and is released with the Packet.
type InternedString struct {
	ID  uint64
	Str traceblob.View
}

// Mapping describes a mapped binary. BuildID and PathStringIDs refer to
// interned strings.
type Mapping struct {
	ID            uint64
	BuildID       uint64
	StartOffset   uint64
	Start         uint64
	End           uint64
	LoadBias      uint64
	ExactOffset   uint64
	PathStringIDs []uint64
}

// Frame is a location in a mapping. FunctionNameID refers to an interned string.
type Frame struct {
	ID             uint64
	FunctionNameID uint64
	MappingID      uint64
	RelPC          uint64
}

// Callstack lists frame ids starting with the outermost frame.
type Callstack struct {
	ID       uint64
	FrameIDs []uint64
}

// ProcessHeapSamples holds the samples of one process in a dump.
type ProcessHeapSamples struct {
	PID       uint64
	Timestamp uint64
	HeapName  string
	Samples   []HeapSample
}

// HeapSample holds the counters of one callstack. All counters are cumulative
// since the start of the profiling session.
type HeapSample struct {
	CallstackID   uint64
	SelfAllocated uint64
	SelfFreed     uint64
	Timestamp     uint64
	AllocCount    uint64
	FreeCount     uint64
}

// Release drops the references the Packet holds into the trace bytes.
func (p *Packet) Release() {
	if p.Profile == nil {
		return
	}
	for i := range p.Profile.Strings {
		p.Profile.Strings[i].Str.Release()
	}
}

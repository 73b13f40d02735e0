// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutils encodes trace packets for tests.
package testutils // import "go.opentelemetry.io/profile-ingest/testutils"

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// String is an interned string entry.
type String struct {
	ID  uint64
	Str string
}

// Mapping is an interned mapping entry.
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

// Frame is an interned frame entry.
type Frame struct {
	ID             uint64
	FunctionNameID uint64
	MappingID      uint64
	RelPC          uint64
}

// Callstack is an interned callstack entry. Frame ids are written packed unless
// Unpacked is set.
type Callstack struct {
	ID       uint64
	FrameIDs []uint64
	Unpacked bool
}

// Sample is a heap sample with cumulative counters.
type Sample struct {
	CallstackID   uint64
	SelfAllocated uint64
	SelfFreed     uint64
	Timestamp     uint64
	AllocCount    uint64
	FreeCount     uint64
}

// Dump holds the samples of one process.
type Dump struct {
	PID       uint64
	Timestamp uint64
	HeapName  string
	Samples   []Sample
}

// ProfilePacket describes a TracePacket carrying a profile packet.
type ProfilePacket struct {
	SequenceID              uint32
	Timestamp               uint64
	IncrementalStateCleared bool
	Index                   uint64
	Continued               bool
	Strings                 []String
	Mappings                []Mapping
	Frames                  []Frame
	Callstacks              []Callstack
	Dumps                   []Dump
}

// Marshal returns the TracePacket encoding of p.
func (p *ProfilePacket) Marshal() []byte {
	var b []byte
	if p.Timestamp != 0 {
		b = appendVarint(b, 8, p.Timestamp)
	}
	b = appendVarint(b, 10, uint64(p.SequenceID))
	if p.IncrementalStateCleared {
		b = appendVarint(b, 41, 1)
	}
	return appendMessage(b, 37, p.marshalProfile())
}

func (p *ProfilePacket) marshalProfile() []byte {
	var b []byte
	for _, s := range p.Strings {
		var m []byte
		m = appendVarint(m, 1, s.ID)
		m = protowire.AppendTag(m, 2, protowire.BytesType)
		m = protowire.AppendString(m, s.Str)
		b = appendMessage(b, 1, m)
	}
	for _, f := range p.Frames {
		var m []byte
		m = appendVarint(m, 1, f.ID)
		m = appendVarint(m, 2, f.FunctionNameID)
		m = appendVarint(m, 3, f.MappingID)
		m = appendVarint(m, 4, f.RelPC)
		b = appendMessage(b, 2, m)
	}
	for _, c := range p.Callstacks {
		var m []byte
		m = appendVarint(m, 1, c.ID)
		m = appendUints(m, 2, c.FrameIDs, !c.Unpacked)
		b = appendMessage(b, 3, m)
	}
	for _, mp := range p.Mappings {
		var m []byte
		m = appendVarint(m, 1, mp.ID)
		m = appendVarint(m, 2, mp.BuildID)
		m = appendVarint(m, 3, mp.StartOffset)
		m = appendVarint(m, 4, mp.Start)
		m = appendVarint(m, 5, mp.End)
		m = appendVarint(m, 6, mp.LoadBias)
		m = appendUints(m, 7, mp.PathStringIDs, false)
		m = appendVarint(m, 8, mp.ExactOffset)
		b = appendMessage(b, 4, m)
	}
	for _, d := range p.Dumps {
		var m []byte
		m = appendVarint(m, 1, d.PID)
		for _, s := range d.Samples {
			var sm []byte
			sm = appendVarint(sm, 1, s.CallstackID)
			sm = appendVarint(sm, 2, s.SelfAllocated)
			sm = appendVarint(sm, 3, s.SelfFreed)
			if s.Timestamp != 0 {
				sm = appendVarint(sm, 4, s.Timestamp)
			}
			sm = appendVarint(sm, 5, s.AllocCount)
			sm = appendVarint(sm, 6, s.FreeCount)
			m = appendMessage(m, 2, sm)
		}
		if d.Timestamp != 0 {
			m = appendVarint(m, 9, d.Timestamp)
		}
		if d.HeapName != "" {
			m = protowire.AppendTag(m, 11, protowire.BytesType)
			m = protowire.AppendString(m, d.HeapName)
		}
		b = appendMessage(b, 5, m)
	}
	if p.Continued {
		b = appendVarint(b, 6, 1)
	}
	return appendVarint(b, 7, p.Index)
}

// Trace frames the given TracePacket encodings as a Trace.
func Trace(packets ...[]byte) []byte {
	var b []byte
	for _, p := range packets {
		b = appendMessage(b, 1, p)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendUints(b []byte, num protowire.Number, vs []uint64, packed bool) []byte {
	if !packed {
		for _, v := range vs {
			b = appendVarint(b, num, v)
		}
		return b
	}
	if len(vs) == 0 {
		return b
	}
	var m []byte
	for _, v := range vs {
		m = protowire.AppendVarint(m, v)
	}
	return appendMessage(b, num, m)
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracereader // import "go.opentelemetry.io/profile-ingest/tracereader"

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/traceblob"
)

// TracePacket fields.
const (
	packetTimestamp               protowire.Number = 8
	packetTrustedSequenceID       protowire.Number = 10
	packetProfilePacket           protowire.Number = 37
	packetIncrementalStateCleared protowire.Number = 41
)

// ProfilePacket fields.
const (
	profileStrings      protowire.Number = 1
	profileFrames       protowire.Number = 2
	profileCallstacks   protowire.Number = 3
	profileMappings     protowire.Number = 4
	profileProcessDumps protowire.Number = 5
	profileContinued    protowire.Number = 6
	profileIndex        protowire.Number = 7
)

// field is a single decoded protobuf field. Only varint and length delimited
// fields carry a value, other wire types are skipped.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func (f field) uint() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: field %d has wire type %d, expected varint",
			ErrMalformed, f.num, f.typ)
	}
	return f.varint, nil
}

func (f field) message() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: field %d has wire type %d, expected bytes",
			ErrMalformed, f.num, f.typ)
	}
	return f.bytes, nil
}

// appendUints appends a repeated varint field that is either packed or not.
func (f field) appendUints(dst []uint64) ([]uint64, error) {
	if f.typ == protowire.VarintType {
		return append(dst, f.varint), nil
	}
	b, err := f.message()
	if err != nil {
		return dst, err
	}
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return dst, fmt.Errorf("%w: packed field %d: %v", ErrMalformed, f.num,
				protowire.ParseError(n))
		}
		dst = append(dst, v)
		b = b[n:]
	}
	return dst, nil
}

// forEachField calls fn for each field of the message encoded in b.
func forEachField(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// DecodePacket decodes the TracePacket in v. The returned Packet holds its own
// references into v's Blob, so v can be released independently.
func DecodePacket(v traceblob.View) (*Packet, error) {
	p := &Packet{}
	err := forEachField(v.Data(), func(f field) error {
		var err error
		switch f.num {
		case packetTimestamp:
			p.Timestamp, err = f.uint()
		case packetTrustedSequenceID:
			var id uint64
			id, err = f.uint()
			p.SequenceID = libpf.SequenceID(id)
		case packetIncrementalStateCleared:
			var cleared uint64
			cleared, err = f.uint()
			p.IncrementalStateCleared = cleared != 0
		case packetProfilePacket:
			var b []byte
			if b, err = f.message(); err != nil {
				return err
			}
			if p.Profile == nil {
				p.Profile = &ProfilePacket{}
			}
			err = decodeProfilePacket(v, b, p.Profile)
		}
		return err
	})
	if err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func decodeProfilePacket(v traceblob.View, b []byte, pp *ProfilePacket) error {
	return forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case profileStrings:
			err = decodeSubmessage(f, func(b []byte) error {
				s, err := decodeInternedString(v, b)
				if err == nil {
					pp.Strings = append(pp.Strings, s)
				}
				return err
			})
		case profileFrames:
			err = decodeSubmessage(f, func(b []byte) error {
				fr, err := decodeFrame(b)
				pp.Frames = append(pp.Frames, fr)
				return err
			})
		case profileCallstacks:
			err = decodeSubmessage(f, func(b []byte) error {
				cs, err := decodeCallstack(b)
				pp.Callstacks = append(pp.Callstacks, cs)
				return err
			})
		case profileMappings:
			err = decodeSubmessage(f, func(b []byte) error {
				m, err := decodeMapping(b)
				pp.Mappings = append(pp.Mappings, m)
				return err
			})
		case profileProcessDumps:
			err = decodeSubmessage(f, func(b []byte) error {
				d, err := decodeProcessHeapSamples(b)
				pp.ProcessDumps = append(pp.ProcessDumps, d)
				return err
			})
		case profileContinued:
			var continued uint64
			continued, err = f.uint()
			pp.Continued = continued != 0
		case profileIndex:
			pp.Index, err = f.uint()
		}
		return err
	})
}

func decodeSubmessage(f field, fn func([]byte) error) error {
	b, err := f.message()
	if err != nil {
		return err
	}
	return fn(b)
}

func decodeInternedString(v traceblob.View, b []byte) (InternedString, error) {
	var s InternedString
	var str []byte
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			s.ID, err = f.uint()
		case 2:
			str, err = f.message()
		}
		return err
	})
	if err != nil {
		return s, err
	}
	s.Str, err = v.SliceData(str)
	return s, err
}

func decodeFrame(b []byte) (Frame, error) {
	var fr Frame
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			fr.ID, err = f.uint()
		case 2:
			fr.FunctionNameID, err = f.uint()
		case 3:
			fr.MappingID, err = f.uint()
		case 4:
			fr.RelPC, err = f.uint()
		}
		return err
	})
	return fr, err
}

func decodeCallstack(b []byte) (Callstack, error) {
	var cs Callstack
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			cs.ID, err = f.uint()
		case 2:
			cs.FrameIDs, err = f.appendUints(cs.FrameIDs)
		}
		return err
	})
	return cs, err
}

func decodeMapping(b []byte) (Mapping, error) {
	var m Mapping
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.ID, err = f.uint()
		case 2:
			m.BuildID, err = f.uint()
		case 3:
			m.StartOffset, err = f.uint()
		case 4:
			m.Start, err = f.uint()
		case 5:
			m.End, err = f.uint()
		case 6:
			m.LoadBias, err = f.uint()
		case 7:
			m.PathStringIDs, err = f.appendUints(m.PathStringIDs)
		case 8:
			m.ExactOffset, err = f.uint()
		}
		return err
	})
	return m, err
}

func decodeProcessHeapSamples(b []byte) (ProcessHeapSamples, error) {
	var d ProcessHeapSamples
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			d.PID, err = f.uint()
		case 2:
			err = decodeSubmessage(f, func(b []byte) error {
				s, err := decodeHeapSample(b)
				d.Samples = append(d.Samples, s)
				return err
			})
		case 9:
			d.Timestamp, err = f.uint()
		case 11:
			var name []byte
			name, err = f.message()
			d.HeapName = string(name)
		}
		return err
	})
	return d, err
}

func decodeHeapSample(b []byte) (HeapSample, error) {
	var s HeapSample
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			s.CallstackID, err = f.uint()
		case 2:
			s.SelfAllocated, err = f.uint()
		case 3:
			s.SelfFreed, err = f.uint()
		case 4:
			s.Timestamp, err = f.uint()
		case 5:
			s.AllocCount, err = f.uint()
		case 6:
			s.FreeCount, err = f.uint()
		}
		return err
	})
	return s, err
}

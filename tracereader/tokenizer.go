// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracereader splits a binary trace stream into packets and decodes the
// packet fields used for heap profile ingestion.
//
// Packets are handed out as traceblob.Views into the input, so no bytes are
// copied unless a packet is split across two input chunks.
package tracereader // import "go.opentelemetry.io/profile-ingest/tracereader"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"go.opentelemetry.io/profile-ingest/traceblob"
)

// ErrMalformed indicates that the input does not follow the trace encoding.
var ErrMalformed = errors.New("malformed trace data")

const (
	// tracePacketField is the field number of Trace.packet.
	tracePacketField protowire.Number = 1

	// maxHeaderSize is the maximum size of a tag followed by a length prefix.
	maxHeaderSize = 2 * binary.MaxVarintLen64

	// maxPacketSize bounds the size of a single packet.
	maxPacketSize = 256 << 20
)

// header describes the framing of a length delimited Trace field.
type header struct {
	field protowire.Number
	// prefix is the size of the tag and the length prefix.
	prefix int
	// size is the size of the whole field including prefix.
	size int
}

// parseHeader parses the framing of the next Trace field in b. It returns
// ok=false and a nil error if b does not hold the complete framing yet.
func parseHeader(b []byte) (h header, ok bool, err error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return h, false, framingError(n)
	}
	if typ != protowire.BytesType {
		return h, false, fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
	}
	length, m := protowire.ConsumeVarint(b[n:])
	if m < 0 {
		return h, false, framingError(m)
	}
	if length > maxPacketSize {
		return h, false, fmt.Errorf("%w: field %d of %d bytes exceeds limit", ErrMalformed,
			num, length)
	}
	return header{field: num, prefix: n + m, size: n + m + int(length)}, true, nil
}

func framingError(n int) error {
	err := protowire.ParseError(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// Tokenizer splits a stream of chunks into packets. Packets that are contained
// in a chunk are returned as slices of it. A packet that spans chunk boundaries
// is stitched together into a Blob of its own.
type Tokenizer struct {
	partial []byte

	// skipped counts Trace fields that were not packets.
	skipped uint64
}

// Skipped returns the number of non-packet fields that were skipped.
func (t *Tokenizer) Skipped() uint64 {
	return t.skipped
}

// Feed tokenizes chunk and calls emit for each complete packet. The View passed
// to emit holds its own reference and must be released by the callee. Feed
// does not take over the reference held by chunk.
func (t *Tokenizer) Feed(chunk traceblob.View, emit func(traceblob.View) error) error {
	data := chunk.Data()
	off := 0

	if len(t.partial) > 0 {
		consumed, h, done, err := t.completePartial(data)
		if err != nil {
			return err
		}
		off = consumed
		if !done {
			return nil
		}
		stitched := t.partial
		t.partial = nil
		if h.field != tracePacketField {
			t.skipped++
		} else {
			blob := traceblob.NewBlob(stitched)
			pkt, err := traceblob.NewView(blob, h.prefix, h.size-h.prefix)
			if err != nil {
				blob.Discard()
				return err
			}
			if err := emit(pkt); err != nil {
				return err
			}
		}
	}

	for off < len(data) {
		h, ok, err := parseHeader(data[off:])
		if err != nil {
			return err
		}
		if !ok || h.size > len(data)-off {
			t.partial = append([]byte(nil), data[off:]...)
			return nil
		}
		if h.field == tracePacketField {
			pkt, err := chunk.Slice(off+h.prefix, h.size-h.prefix)
			if err != nil {
				return err
			}
			if err := emit(pkt); err != nil {
				return err
			}
		} else {
			t.skipped++
		}
		off += h.size
	}
	return nil
}

// completePartial appends bytes from data to the pending partial field until it
// is complete or data is exhausted. It returns the number of bytes of data that
// belong to the partial field.
func (t *Tokenizer) completePartial(data []byte) (consumed int, h header, done bool, err error) {
	for {
		var ok bool
		h, ok, err = parseHeader(t.partial)
		if err != nil {
			return 0, h, false, err
		}
		if !ok {
			if consumed == len(data) {
				return consumed, h, false, nil
			}
			n := min(maxHeaderSize, len(data)-consumed)
			t.partial = append(t.partial, data[consumed:consumed+n]...)
			consumed += n
			continue
		}
		if len(t.partial) >= h.size {
			// Header bytes taken from data may reach into the next field.
			extra := len(t.partial) - h.size
			t.partial = t.partial[:h.size:h.size]
			return consumed - extra, h, true, nil
		}
		n := min(h.size-len(t.partial), len(data)-consumed)
		t.partial = append(t.partial, data[consumed:consumed+n]...)
		consumed += n
		if len(t.partial) < h.size {
			return consumed, h, false, nil
		}
	}
}

// Finish reports whether the stream ended in the middle of a packet and resets
// the Tokenizer.
func (t *Tokenizer) Finish() error {
	if n := len(t.partial); n > 0 {
		t.partial = nil
		return fmt.Errorf("%w: %d trailing bytes of a truncated packet", ErrMalformed, n)
	}
	return nil
}

// ForEachPacket calls fn for every packet of the complete trace in trace.
func ForEachPacket(trace traceblob.View, fn func(traceblob.View) error) error {
	var t Tokenizer
	if err := t.Feed(trace, fn); err != nil {
		return err
	}
	return t.Finish()
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracereader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/testutils"
)

func TestDecodePacket(t *testing.T) {
	in := testutils.ProfilePacket{
		SequenceID:              7,
		Timestamp:               1234,
		IncrementalStateCleared: true,
		Index:                   3,
		Continued:               true,
		Strings: []testutils.String{
			{ID: 1, Str: "malloc"},
			{ID: 2, Str: "/usr/lib/libc.so.6"},
			{ID: 3, Str: ""},
		},
		Mappings: []testutils.Mapping{{
			ID: 1, BuildID: 3, StartOffset: 0x1000, Start: 0x7f00, End: 0x8f00,
			LoadBias: 0x10, ExactOffset: 0x20, PathStringIDs: []uint64{2},
		}},
		Frames: []testutils.Frame{
			{ID: 1, FunctionNameID: 1, MappingID: 1, RelPC: 0x42},
			{ID: 2, FunctionNameID: 1, MappingID: 1, RelPC: 0x84},
		},
		Callstacks: []testutils.Callstack{
			{ID: 1, FrameIDs: []uint64{1, 2}},
			{ID: 2, FrameIDs: []uint64{2, 1}, Unpacked: true},
		},
		Dumps: []testutils.Dump{{
			PID:       42,
			Timestamp: 5000,
			HeapName:  "libc.malloc",
			Samples: []testutils.Sample{
				{CallstackID: 1, SelfAllocated: 1000, AllocCount: 2},
				{CallstackID: 2, SelfAllocated: 64, SelfFreed: 32, Timestamp: 4999,
					AllocCount: 1, FreeCount: 1},
			},
		}},
	}

	v := newView(t, in.Marshal())
	p, err := DecodePacket(v)
	require.NoError(t, err)

	assert.Equal(t, uint64(1234), p.Timestamp)
	assert.Equal(t, libpf.SequenceID(7), p.SequenceID)
	assert.True(t, p.IncrementalStateCleared)
	require.NotNil(t, p.Profile)

	pp := p.Profile
	assert.Equal(t, uint64(3), pp.Index)
	assert.True(t, pp.Continued)

	require.Len(t, pp.Strings, 3)
	assert.Equal(t, uint64(1), pp.Strings[0].ID)
	assert.Equal(t, "malloc", string(pp.Strings[0].Str.Data()))
	assert.Equal(t, "/usr/lib/libc.so.6", string(pp.Strings[1].Str.Data()))
	assert.True(t, pp.Strings[2].Str.IsEmpty())

	assert.Equal(t, []Mapping{{
		ID: 1, BuildID: 3, StartOffset: 0x1000, Start: 0x7f00, End: 0x8f00,
		LoadBias: 0x10, ExactOffset: 0x20, PathStringIDs: []uint64{2},
	}}, pp.Mappings)
	assert.Equal(t, []Frame{
		{ID: 1, FunctionNameID: 1, MappingID: 1, RelPC: 0x42},
		{ID: 2, FunctionNameID: 1, MappingID: 1, RelPC: 0x84},
	}, pp.Frames)
	assert.Equal(t, []Callstack{
		{ID: 1, FrameIDs: []uint64{1, 2}},
		{ID: 2, FrameIDs: []uint64{2, 1}},
	}, pp.Callstacks)
	assert.Equal(t, []ProcessHeapSamples{{
		PID:       42,
		Timestamp: 5000,
		HeapName:  "libc.malloc",
		Samples: []HeapSample{
			{CallstackID: 1, SelfAllocated: 1000, AllocCount: 2},
			{CallstackID: 2, SelfAllocated: 64, SelfFreed: 32, Timestamp: 4999,
				AllocCount: 1, FreeCount: 1},
		},
	}}, pp.ProcessDumps)

	// Interned strings keep the packet bytes alive.
	blob := v.Blob()
	v.Release()
	assert.False(t, blob.Released())
	assert.Equal(t, "malloc", string(pp.Strings[0].Str.Data()))
	p.Release()
	assert.True(t, blob.Released())
}

func TestDecodeNonProfilePacket(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 10, protowire.VarintType)
	b = protowire.AppendVarint(b, 3)
	// An unrelated fixed64 and length delimited field.
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 1)
	b = protowire.AppendTag(b, 100, protowire.BytesType)
	b = protowire.AppendString(b, "other")

	v := newView(t, b)
	defer v.Release()
	p, err := DecodePacket(v)
	require.NoError(t, err)
	assert.Equal(t, libpf.SequenceID(3), p.SequenceID)
	assert.Nil(t, p.Profile)
}

func TestDecodeMalformed(t *testing.T) {
	truncated := (&testutils.ProfilePacket{SequenceID: 1, Index: 1}).Marshal()
	truncated = truncated[:len(truncated)-1]

	wrongType := protowire.AppendTag(nil, 37, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 1)

	tests := map[string][]byte{
		"truncated":        truncated,
		"wrong wire type":  wrongType,
		"bad packed value": packedGarbage(),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			v := newView(t, data)
			blob := v.Blob()
			_, err := DecodePacket(v)
			require.ErrorIs(t, err, ErrMalformed)
			v.Release()
			assert.True(t, blob.Released())
		})
	}
}

// packedGarbage returns a profile packet with a string followed by a callstack
// whose packed frame ids end in an incomplete varint.
func packedGarbage() []byte {
	var str []byte
	str = protowire.AppendTag(str, 1, protowire.VarintType)
	str = protowire.AppendVarint(str, 1)
	str = protowire.AppendTag(str, 2, protowire.BytesType)
	str = protowire.AppendString(str, "leak")

	var cs []byte
	cs = protowire.AppendTag(cs, 2, protowire.BytesType)
	cs = protowire.AppendBytes(cs, []byte{0x01, 0x80})

	var pp []byte
	pp = protowire.AppendTag(pp, 1, protowire.BytesType)
	pp = protowire.AppendBytes(pp, str)
	pp = protowire.AppendTag(pp, 3, protowire.BytesType)
	pp = protowire.AppendBytes(pp, cs)

	var b []byte
	b = protowire.AppendTag(b, 37, protowire.BytesType)
	return protowire.AppendBytes(b, pp)
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf

import (
	"testing"
	"unique"

	"github.com/stretchr/testify/assert"
)

func TestInternBytes(t *testing.T) {
	buf := []byte("malloc")
	s := InternBytes(buf)
	buf[0] = 'x'

	assert.Equal(t, "malloc", s.String())
	assert.Equal(t, Intern("malloc"), s)
	assert.Equal(t, NullString, InternBytes(nil))
	assert.Equal(t, "", NullString.String())
}

func TestFrameHash(t *testing.T) {
	libc := NewMapping(MappingData{
		BuildID: Intern("abcd"),
		Path:    Intern("/lib/libc.so.6"),
		Start:   0x7f0000000000,
		End:     0x7f0000100000,
	})
	other := NewMapping(MappingData{
		BuildID: Intern("abcd"),
		Path:    Intern("/lib/libc.so.6"),
		Start:   0x7f1000000000,
		End:     0x7f1000100000,
	})
	assert.True(t, libc.Valid())
	assert.False(t, Mapping{}.Valid())

	a := Frame{FunctionName: Intern("malloc"), Mapping: libc, RelPC: 0x10}
	b := Frame{FunctionName: Intern("malloc"), Mapping: other, RelPC: 0x10}
	c := Frame{FunctionName: Intern("malloc"), Mapping: libc, RelPC: 0x20}

	// Load addresses differ between processes, the hash only depends on the
	// file identity and the relative pc.
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.NotEqual(t, unique.Make(a), unique.Make(b))
}

func TestFramesHash(t *testing.T) {
	main := Frame{FunctionName: Intern("main")}
	alloc := Frame{FunctionName: Intern("malloc")}

	var ab, ba Frames
	ab.Append(&main)
	ab.Append(&alloc)
	ba.Append(&alloc)
	ba.Append(&main)

	assert.Len(t, ab, 2)
	assert.Equal(t, "malloc", ab[1].Value().FunctionName.String())
	assert.NotEqual(t, ab.Hash(), ba.Hash())
	assert.Equal(t, ab.Hash(), Frames{unique.Make(main), unique.Make(alloc)}.Hash())
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package interning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/profile-ingest/libpf"
)

func TestCatalogDeduplicatesFrames(t *testing.T) {
	c := NewCatalog(false)
	mapping := libpf.NewMapping(libpf.MappingData{Path: libpf.Intern("/bin/app")})

	a := c.InternFrame(libpf.Frame{FunctionName: libpf.Intern("f"), Mapping: mapping, RelPC: 1})
	b := c.InternFrame(libpf.Frame{FunctionName: libpf.Intern("f"), Mapping: mapping, RelPC: 1})
	other := c.InternFrame(libpf.Frame{FunctionName: libpf.Intern("f"), Mapping: mapping, RelPC: 2})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)

	frames, callsites := c.Len()
	assert.Equal(t, 2, frames)
	assert.Zero(t, callsites)
}

func TestCatalogCallsiteTree(t *testing.T) {
	c := NewCatalog(false)
	f1 := c.InternFrame(libpf.Frame{RelPC: 1})
	f2 := c.InternFrame(libpf.Frame{RelPC: 2})
	f3 := c.InternFrame(libpf.Frame{RelPC: 3})

	abc, err := c.InternCallstack([]libpf.FrameID{f1, f2, f3})
	require.NoError(t, err)
	ab, err := c.InternCallstack([]libpf.FrameID{f1, f2})
	require.NoError(t, err)
	b, err := c.InternCallstack([]libpf.FrameID{f2})
	require.NoError(t, err)

	node, ok := c.Callsite(abc)
	require.True(t, ok)
	assert.Equal(t, Callsite{Parent: ab, Frame: f3, Depth: 2}, node)
	// A frame at the root is a different callsite than the same frame below
	// another one.
	assert.NotEqual(t, ab, b)

	_, callsites := c.Len()
	assert.Equal(t, 4, callsites)

	frames, ok := c.Frames(abc)
	require.True(t, ok)
	require.Len(t, frames, 3)
	assert.Equal(t, uint64(1), frames[0].Value().RelPC)
	assert.Equal(t, uint64(3), frames[2].Value().RelPC)

	_, ok = c.Frames(100)
	assert.False(t, ok)
	_, ok = c.Frame(100)
	assert.False(t, ok)
}

func TestCatalogDemangle(t *testing.T) {
	tests := map[string]struct {
		demangle bool
		want     string
	}{
		"demangled": {demangle: true, want: "foo::bar()"},
		"raw":       {demangle: false, want: "_ZN3foo3barEv"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewCatalog(tc.demangle)
			id := c.InternFrame(libpf.Frame{FunctionName: libpf.Intern("_ZN3foo3barEv")})
			f, ok := c.Frame(id)
			require.True(t, ok)
			assert.Equal(t, tc.want, f.FunctionName.String())

			// Names that are not mangled are kept as they are.
			id = c.InternFrame(libpf.Frame{FunctionName: libpf.Intern("malloc")})
			f, ok = c.Frame(id)
			require.True(t, ok)
			assert.Equal(t, "malloc", f.FunctionName.String())
		})
	}
}

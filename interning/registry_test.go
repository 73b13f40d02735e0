// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package interning

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/tracereader"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewCatalog(false), 8)

	t1, err := r.Table(1)
	require.NoError(t, err)
	again, err := r.Table(1)
	require.NoError(t, err)
	assert.Same(t, t1, again)

	t2, err := r.Table(2)
	require.NoError(t, err)
	assert.NotSame(t, t1, t2)
	assert.Equal(t, []libpf.SequenceID{1, 2}, r.Sequences())

	// Sequences are independent: the same id may be bound differently.
	require.NoError(t, t1.InternString(1, []byte("one")))
	require.NoError(t, t2.InternString(1, []byte("two")))

	r.Reset(1)
	assert.Equal(t, []libpf.SequenceID{2}, r.Sequences())
	fresh, err := r.Table(1)
	require.NoError(t, err)
	_, err = fresh.ResolveString(1)
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestRegistrySharesCatalog(t *testing.T) {
	r := NewRegistry(NewCatalog(false), 8)

	var wg sync.WaitGroup
	ids := make([]libpf.CallsiteID, 4)
	for i := range ids {
		wg.Add(1)
		go func(seq libpf.SequenceID) {
			defer wg.Done()
			table, err := r.Table(seq)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, table.InternString(uint64(seq), []byte("f")))
			assert.NoError(t, table.InternFrame(tracereader.Frame{
				ID: 1, FunctionNameID: uint64(seq), RelPC: 4}))
			assert.NoError(t, table.InternCallstack(tracereader.Callstack{
				ID: 1, FrameIDs: []uint64{1}}))
			ids[seq], err = table.ResolveCallstack(1)
			assert.NoError(t, err)
		}(libpf.SequenceID(i))
	}
	wg.Wait()

	// The same frame interned by different sequences resolves to one callsite.
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	frames, callsites := r.Catalog().Len()
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, callsites)
}

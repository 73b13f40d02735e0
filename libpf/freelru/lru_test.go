// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package freelru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/profile-ingest/libpf/hash"
)

func TestStatistics(t *testing.T) {
	cache, err := New[uint64, string](2, hash.Uint64Key)
	require.NoError(t, err)

	cache.Add(1, "a")
	cache.Add(2, "b")
	v, ok := cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = cache.Get(3)
	assert.False(t, ok)

	// Capacity 2: adding a third key evicts the least recently used one.
	assert.True(t, cache.Add(3, "c"))
	assert.Equal(t, 2, cache.Len())

	stats := cache.GetAndResetStatistics()
	assert.Equal(t, Statistics{Hit: 1, Miss: 1, Added: 3, Evicted: 1}, stats)
	assert.Equal(t, Statistics{}, cache.GetAndResetStatistics())
}

func TestZeroCapacity(t *testing.T) {
	_, err := New[uint64, string](0, hash.Uint64Key)
	assert.Error(t, err)
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDHash32(t *testing.T) {
	assert.Equal(t, SequenceID(7).Hash32(), SequenceID(7).Hash32())
	assert.NotEqual(t, SequenceID(7).Hash32(), SequenceID(8).Hash32())

	// Consecutive ids spread over a small number of buckets.
	const buckets = 4
	var counts [buckets]int
	for seq := SequenceID(1); seq <= 1024; seq++ {
		counts[seq.Hash32()%buckets]++
	}
	for i, n := range counts {
		assert.Greater(t, n, 128, "bucket %d", i)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, NullString, Intern(""))
	assert.Equal(t, "", NullString.String())
	assert.Equal(t, Intern("malloc"), InternBytes([]byte("malloc")))
	assert.Equal(t, "malloc", Intern("malloc").String())
	assert.NotEqual(t, Intern("malloc"), Intern("free"))
}

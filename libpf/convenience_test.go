// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddJitter(t *testing.T) {
	base := 10 * time.Second
	for range 100 {
		d := AddJitter(base, 0.2)
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}

	// Out of range jitter leaves the duration untouched.
	assert.Equal(t, base, AddJitter(base, 1.5))
	assert.Equal(t, base, AddJitter(base, -0.1))
}

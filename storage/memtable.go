// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storage // import "go.opentelemetry.io/profile-ingest/storage"

import (
	"context"
	"slices"
	"sync"
)

// MemoryTable is a Writer that keeps all rows in memory.
type MemoryTable struct {
	mu      sync.Mutex
	rows    []AllocationRow
	batches int
}

// WriteAllocations implements Writer.
func (m *MemoryTable) WriteAllocations(_ context.Context, rows []AllocationRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	m.batches++
	return nil
}

// Rows returns a copy of all rows in write order.
func (m *MemoryTable) Rows() []AllocationRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}

// Batches returns the number of batches written.
func (m *MemoryTable) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

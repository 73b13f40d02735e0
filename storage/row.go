// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the sink that committed allocation rows are written
// to, together with an in-memory table, a batching writer and a compressed
// JSON lines export.
package storage // import "go.opentelemetry.io/profile-ingest/storage"

import (
	"context"
	"errors"

	"go.opentelemetry.io/profile-ingest/libpf"
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("writer closed")

// AllocationRow is the committed change of the heap counters of one callsite of
// one process between two dumps. Rows are never mutated after being written.
type AllocationRow struct {
	Sequence  libpf.SequenceID `json:"sequence"`
	PID       libpf.PID        `json:"pid"`
	Callsite  libpf.CallsiteID `json:"callsite"`
	Timestamp uint64           `json:"ts"`
	HeapName  string           `json:"heap_name,omitempty"`

	AllocCount uint64 `json:"alloc_count"`
	AllocBytes uint64 `json:"alloc_bytes"`
	FreeCount  uint64 `json:"free_count"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// Writer accepts batches of rows. A batch is either accepted as a whole or
// rejected with an error, in which case the caller still owns it.
type Writer interface {
	WriteAllocations(ctx context.Context, rows []AllocationRow) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, rows []AllocationRow) error

// WriteAllocations implements Writer.
func (f WriterFunc) WriteAllocations(ctx context.Context, rows []AllocationRow) error {
	return f(ctx, rows)
}

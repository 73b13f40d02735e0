// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/profile-ingest/libpf"
)

func rows(callsites ...libpf.CallsiteID) []AllocationRow {
	out := make([]AllocationRow, len(callsites))
	for i, cs := range callsites {
		out[i] = AllocationRow{Sequence: 1, PID: 10, Callsite: cs, AllocBytes: 100}
	}
	return out
}

func TestBatchConfigValidate(t *testing.T) {
	tests := map[string]BatchConfig{
		"zero rows":        {BatchRows: 0, QueueBatches: 1},
		"zero batches":     {BatchRows: 1, QueueBatches: 0},
		"negative period":  {BatchRows: 1, QueueBatches: 1, FlushInterval: -1},
		"jitter too large": {BatchRows: 1, QueueBatches: 1, Jitter: 1.5},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			require.Error(t, cfg.Validate())
		})
	}
}

func TestBatchWriterFlushOnSize(t *testing.T) {
	ctx := context.Background()
	sink := &MemoryTable{}
	w, err := NewBatchWriter(ctx, sink, BatchConfig{BatchRows: 3, QueueBatches: 8})
	require.NoError(t, err)

	require.NoError(t, w.WriteAllocations(ctx, rows(1, 2)))
	assert.Empty(t, sink.Rows())
	assert.Equal(t, 2, w.Buffered())

	require.NoError(t, w.WriteAllocations(ctx, rows(3)))
	assert.Equal(t, rows(1, 2, 3), sink.Rows())
	assert.Equal(t, 1, sink.Batches())
	assert.Zero(t, w.Buffered())

	require.NoError(t, w.WriteAllocations(ctx, nil))
	require.NoError(t, w.WriteAllocations(ctx, rows(4)))
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, rows(1, 2, 3, 4), sink.Rows())

	require.ErrorIs(t, w.WriteAllocations(ctx, rows(5)), ErrClosed)
}

func TestBatchWriterFlushOnInterval(t *testing.T) {
	ctx := context.Background()
	sink := &MemoryTable{}
	w, err := NewBatchWriter(ctx, sink, BatchConfig{
		BatchRows:     100,
		QueueBatches:  8,
		FlushInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Close(ctx)

	require.NoError(t, w.WriteAllocations(ctx, rows(1)))
	assert.Eventually(t, func() bool {
		return len(sink.Rows()) == 1
	}, time.Second, time.Millisecond)
}

func TestBatchWriterRetry(t *testing.T) {
	ctx := context.Background()
	sink := &MemoryTable{}
	var failing atomic.Bool
	failing.Store(true)
	errSink := errors.New("sink down")
	next := WriterFunc(func(ctx context.Context, r []AllocationRow) error {
		if failing.Load() {
			return errSink
		}
		return sink.WriteAllocations(ctx, r)
	})

	w, err := NewBatchWriter(ctx, next, BatchConfig{BatchRows: 1, QueueBatches: 2})
	require.NoError(t, err)

	// Accepted rows are kept when the flush fails.
	require.NoError(t, w.WriteAllocations(ctx, rows(1)))
	require.NoError(t, w.WriteAllocations(ctx, rows(2)))
	assert.Equal(t, 2, w.Buffered())

	// The queue is full and cannot be drained, so the batch is rejected.
	err = w.WriteAllocations(ctx, rows(3))
	require.ErrorIs(t, err, errSink)
	assert.Equal(t, 2, w.Buffered())

	failing.Store(false)
	require.NoError(t, w.WriteAllocations(ctx, rows(3)))
	assert.Equal(t, rows(1, 2, 3), sink.Rows())
	require.NoError(t, w.Close(ctx))
}

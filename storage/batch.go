// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storage // import "go.opentelemetry.io/profile-ingest/storage"

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/profile-ingest/metrics"
	"go.opentelemetry.io/profile-ingest/periodiccaller"
)

// BatchConfig configures a BatchWriter.
type BatchConfig struct {
	// BatchRows is the number of buffered rows that triggers a flush.
	BatchRows int
	// QueueBatches is the maximum number of accepted batches held back.
	QueueBatches int
	// FlushInterval is the interval of background flushes. Zero disables them.
	FlushInterval time.Duration
	// Jitter, [0..1], is added to FlushInterval.
	Jitter float64
}

// Validate checks the configuration for errors.
func (c *BatchConfig) Validate() error {
	if c.BatchRows <= 0 {
		return errors.New("batch rows must be positive")
	}
	if c.QueueBatches <= 0 {
		return errors.New("queue batches must be positive")
	}
	if c.FlushInterval < 0 {
		return errors.New("flush interval must not be negative")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return errors.New("jitter must be within [0..1]")
	}
	return nil
}

// BatchWriter accumulates rows and forwards them to another Writer in larger
// batches. Accepted rows are kept until the next Writer accepted them, so a
// failing flush is retried by the next one.
type BatchWriter struct {
	next Writer
	cfg  BatchConfig

	mu       sync.Mutex
	queue    *ringQueue[[]AllocationRow]
	buffered int
	closed   bool

	stop func()
}

// NewBatchWriter returns a BatchWriter that writes to next. Background flushes
// stop when ctx is canceled or on Close.
func NewBatchWriter(ctx context.Context, next Writer, cfg BatchConfig) (*BatchWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	queue, err := newRingQueue[[]AllocationRow](cfg.QueueBatches)
	if err != nil {
		return nil, err
	}
	w := &BatchWriter{
		next:  next,
		cfg:   cfg,
		queue: queue,
		stop:  func() {},
	}
	if cfg.FlushInterval > 0 {
		w.stop = periodiccaller.StartWithJitter(ctx, cfg.FlushInterval, cfg.Jitter,
			func() {
				if err := w.Flush(ctx); err != nil {
					log.Errorf("Failed to flush %d buffered rows: %v", w.Buffered(), err)
				}
			})
	}
	return w, nil
}

// WriteAllocations implements Writer.
func (w *BatchWriter) WriteAllocations(ctx context.Context, rows []AllocationRow) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if w.queue.Full() {
		if err := w.flushLocked(ctx); err != nil {
			return fmt.Errorf("batch queue full: %w", err)
		}
	}
	w.queue.Append(slices.Clone(rows))
	w.buffered += len(rows)

	if w.buffered >= w.cfg.BatchRows {
		if err := w.flushLocked(ctx); err != nil {
			log.Warnf("Deferring flush of %d rows: %v", w.buffered, err)
		}
	}
	metrics.Add(metrics.IDStorageRowsBuffered, metrics.MetricValue(w.buffered))
	return nil
}

func (w *BatchWriter) flushLocked(ctx context.Context) error {
	if w.queue.Len() == 0 {
		return nil
	}
	batches := w.queue.ReadAll()
	if err := w.next.WriteAllocations(ctx, slices.Concat(batches...)); err != nil {
		metrics.Add(metrics.IDStorageWriteErrors, 1)
		// The queue was drained above, so all batches fit again.
		for _, b := range batches {
			w.queue.Append(b)
		}
		return err
	}
	w.buffered = 0
	return nil
}

// Flush forwards all buffered rows.
func (w *BatchWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.flushLocked(ctx)
	metrics.Add(metrics.IDStorageRowsBuffered, metrics.MetricValue(w.buffered))
	return err
}

// Buffered returns the number of rows not forwarded yet.
func (w *BatchWriter) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buffered
}

// Close stops background flushes and forwards all buffered rows. Further
// writes fail with ErrClosed.
func (w *BatchWriter) Close(ctx context.Context) error {
	w.stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.flushLocked(ctx)
}

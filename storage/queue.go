// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storage // import "go.opentelemetry.io/profile-ingest/storage"

import (
	"fmt"
)

// ringQueue is a bounded first-in-first-out ring buffer. Unlike a ring that
// overwrites its oldest entries, Append fails once the queue is full, since
// queued entries have already been acknowledged to the producer.
//
// ringQueue is not safe for concurrent use.
type ringQueue[T any] struct {
	// data holds the actual data.
	data []T

	// emptyT is variable of type T used for nullifying entries in data[].
	emptyT T

	// readPos holds the position of the first element to be read in the data array.
	readPos int

	// count holds a count of how many entries are in the array.
	count int
}

func newRingQueue[T any](size int) (*ringQueue[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("unsupported size of queue: %d", size)
	}
	return &ringQueue[T]{data: make([]T, size)}, nil
}

// Len returns the number of queued elements.
func (q *ringQueue[T]) Len() int {
	return q.count
}

// Full reports whether Append would fail.
func (q *ringQueue[T]) Full() bool {
	return q.count == len(q.data)
}

// Append adds element v to the end of the queue.
func (q *ringQueue[T]) Append(v T) bool {
	if q.Full() {
		return false
	}
	q.data[(q.readPos+q.count)%len(q.data)] = v
	q.count++
	return true
}

// ReadAll removes and returns all elements in insertion order.
func (q *ringQueue[T]) ReadAll() []T {
	data := make([]T, q.count)
	for i := range q.count {
		pos := (q.readPos + i) % len(q.data)
		data[i] = q.data[pos]
		// Allow for element to be GCed
		q.data[pos] = q.emptyT
	}
	q.readPos = 0
	q.count = 0
	return data
}

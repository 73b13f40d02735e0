// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package orderedset assigns dense, insertion-ordered indices to distinct values.
package orderedset // import "go.opentelemetry.io/profile-ingest/internal/orderedset"

// OrderedSet is a set that keeps order of insertion.
type OrderedSet[T comparable] map[T]uint32

// Add adds an element to the set and returns its index.
func (os OrderedSet[T]) Add(key T) uint32 {
	idx, _ := os.AddWithCheck(key)
	return idx
}

// AddWithCheck adds an element to the set, returns its index and presence state.
func (os OrderedSet[T]) AddWithCheck(key T) (uint32, bool) {
	if idx, exists := os[key]; exists {
		return idx, true
	}

	idx := uint32(len(os))
	os[key] = idx
	return idx, false
}

// ToSlice returns the elements of the set as a slice, in insertion order.
func (os OrderedSet[T]) ToSlice() []T {
	ret := make([]T, len(os))
	for key, idx := range os {
		ret[idx] = key
	}

	return ret
}

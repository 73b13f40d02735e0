// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package heapprofile // import "go.opentelemetry.io/profile-ingest/heapprofile"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/profile-ingest/libpf"
)

// ErrOrderingAnomaly indicates that a cumulative counter decreased.
var ErrOrderingAnomaly = errors.New("cumulative counter decreased")

// OrderingAnomaly reports a cumulative counter that is smaller than its value
// in a previous dump. The delta is clamped to zero.
type OrderingAnomaly struct {
	Sequence libpf.SequenceID
	PID      libpf.PID
	Callsite libpf.CallsiteID
	Counter  string
	Previous uint64
	Current  uint64
}

func (e *OrderingAnomaly) Error() string {
	return fmt.Sprintf("sequence %d: pid %d callsite %d: %s: %v from %d to %d",
		e.Sequence, e.PID, e.Callsite, e.Counter, ErrOrderingAnomaly, e.Previous, e.Current)
}

func (e *OrderingAnomaly) Is(target error) bool {
	return target == ErrOrderingAnomaly
}

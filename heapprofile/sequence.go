// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package heapprofile // import "go.opentelemetry.io/profile-ingest/heapprofile"

import (
	"fmt"
	"maps"
	"sync"

	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/storage"
)

// deltaKey identifies the counters that deltas are computed against.
type deltaKey struct {
	pid      libpf.PID
	callsite libpf.CallsiteID
}

// totals holds cumulative count and size of allocations or frees.
type totals struct {
	count uint64
	bytes uint64
}

// sequenceState is the delta tracking state of one sequence.
type sequenceState struct {
	mu sync.Mutex

	id    libpf.SequenceID
	state State

	// pending holds the samples of the current dump in arrival order.
	pending []Sample

	// prevAlloc and prevFree hold the totals of the last committed dump.
	prevAlloc map[deltaKey]totals
	prevFree  map[deltaKey]totals

	lastPacketIndex uint64
	hasPacketIndex  bool

	lastDumpIndex uint64
	hasDumpIndex  bool
}

func newSequenceState(id libpf.SequenceID) *sequenceState {
	return &sequenceState{
		id:        id,
		prevAlloc: make(map[deltaKey]totals),
		prevFree:  make(map[deltaKey]totals),
	}
}

// commit holds the result of computing the rows of the pending samples. The
// totals are staged until the rows were written.
type commit struct {
	report Report
	rows   []storage.AllocationRow

	stagedAlloc map[deltaKey]totals
	stagedFree  map[deltaKey]totals
}

// prior returns the totals of key, preferring values staged by earlier samples
// of the same commit.
func prior(staged, committed map[deltaKey]totals, key deltaKey) totals {
	if v, ok := staged[key]; ok {
		return v
	}
	return committed[key]
}

// delta subtracts prev from cur and clamps negative results to zero.
func delta(cur, prev uint64) (d uint64, clamped bool) {
	if cur < prev {
		return 0, true
	}
	return cur - prev, false
}

// prepare computes the rows of all pending samples without changing s.
func (s *sequenceState) prepare(r Resolver, semantics CounterSemantics) *commit {
	c := &commit{
		report:      Report{Sequence: s.id, Samples: len(s.pending)},
		rows:        make([]storage.AllocationRow, 0, len(s.pending)),
		stagedAlloc: make(map[deltaKey]totals),
		stagedFree:  make(map[deltaKey]totals),
	}

	for i := range s.pending {
		sample := &s.pending[i]
		callsite, err := r.ResolveCallstack(sample.CallstackID)
		if err != nil {
			c.report.Dropped++
			c.report.Warnings = append(c.report.Warnings,
				fmt.Errorf("dropping sample of pid %d: %w", sample.PID, err))
			continue
		}

		row := storage.AllocationRow{
			Sequence:  s.id,
			PID:       sample.PID,
			Callsite:  callsite,
			Timestamp: sample.Timestamp,
			HeapName:  sample.HeapName,
		}

		if semantics == SinceDumpStart {
			row.AllocCount, row.AllocBytes = sample.AllocCount, sample.AllocBytes
			row.FreeCount, row.FreeBytes = sample.FreeCount, sample.FreeBytes
			if !isZero(&row) {
				c.rows = append(c.rows, row)
			}
			continue
		}

		key := deltaKey{pid: sample.PID, callsite: callsite}
		prevAlloc := prior(c.stagedAlloc, s.prevAlloc, key)
		prevFree := prior(c.stagedFree, s.prevFree, key)

		clampedBefore := c.report.Clamped
		row.AllocCount = c.delta(&row, "alloc_count", sample.AllocCount, prevAlloc.count)
		row.AllocBytes = c.delta(&row, "alloc_bytes", sample.AllocBytes, prevAlloc.bytes)
		row.FreeCount = c.delta(&row, "free_count", sample.FreeCount, prevFree.count)
		row.FreeBytes = c.delta(&row, "free_bytes", sample.FreeBytes, prevFree.bytes)

		c.stagedAlloc[key] = totals{count: sample.AllocCount, bytes: sample.AllocBytes}
		c.stagedFree[key] = totals{count: sample.FreeCount, bytes: sample.FreeBytes}

		// A clamped row is written even if it is empty, so the counter reset
		// stays visible.
		if isZero(&row) && c.report.Clamped == clampedBefore {
			continue
		}
		c.rows = append(c.rows, row)
	}
	c.report.Rows = len(c.rows)
	return c
}

func (c *commit) delta(row *storage.AllocationRow, counter string, cur, prev uint64) uint64 {
	d, clamped := delta(cur, prev)
	if clamped {
		c.report.Clamped++
		c.report.Warnings = append(c.report.Warnings, &OrderingAnomaly{
			Sequence: row.Sequence,
			PID:      row.PID,
			Callsite: row.Callsite,
			Counter:  counter,
			Previous: prev,
			Current:  cur,
		})
	}
	return d
}

func isZero(row *storage.AllocationRow) bool {
	return row.AllocCount == 0 && row.AllocBytes == 0 &&
		row.FreeCount == 0 && row.FreeBytes == 0
}

// apply makes the staged totals of c the committed ones.
func (s *sequenceState) apply(c *commit) {
	maps.Copy(s.prevAlloc, c.stagedAlloc)
	maps.Copy(s.prevFree, c.stagedFree)
}

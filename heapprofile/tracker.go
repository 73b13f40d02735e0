// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package heapprofile reconstructs absolute allocation rows from the
// cumulative heap samples of trace-writer sequences.
//
// Samples are collected per sequence until the last packet of a dump arrived.
// FinalizeDump then resolves their callstacks, subtracts the totals of the
// previous dump and writes the differences to storage.
package heapprofile // import "go.opentelemetry.io/profile-ingest/heapprofile"

import (
	"context"
	"fmt"
	"maps"
	"slices"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/libpf/xsync"
	"go.opentelemetry.io/profile-ingest/metrics"
	"go.opentelemetry.io/profile-ingest/storage"
)

// Report summarizes a commit of pending samples.
type Report struct {
	Sequence libpf.SequenceID
	// Index is the dump index, zero for CommitSamples.
	Index uint64
	// Samples is the number of pending samples that were processed.
	Samples int
	// Rows is the number of rows written.
	Rows int
	// Dropped is the number of samples whose callstack did not resolve.
	Dropped int
	// Clamped is the number of deltas clamped to zero.
	Clamped int
	// Duplicate is set if the dump had been finalized before.
	Duplicate bool
	// Warnings holds the per-sample anomalies.
	Warnings []error
}

// Tracker holds the delta state of all sequences of a trace and writes
// committed rows to a storage.Writer.
//
// Calls for different sequences may run concurrently. Calls for the same
// sequence are serialized.
type Tracker struct {
	sink      storage.Writer
	semantics CounterSemantics
	sequences xsync.RWMutex[map[libpf.SequenceID]*sequenceState]
}

// NewTracker returns a Tracker writing to sink.
func NewTracker(sink storage.Writer, semantics CounterSemantics) *Tracker {
	return &Tracker{
		sink:      sink,
		semantics: semantics,
		sequences: xsync.NewRWMutex(map[libpf.SequenceID]*sequenceState{}),
	}
}

// sequence returns the state of seq, creating it if needed.
func (t *Tracker) sequence(seq libpf.SequenceID) *sequenceState {
	if st, ok := t.lookup(seq); ok {
		return st
	}
	sequences := t.sequences.WLock()
	defer t.sequences.WUnlock(&sequences)
	st, ok := (*sequences)[seq]
	if !ok {
		st = newSequenceState(seq)
		(*sequences)[seq] = st
	}
	return st
}

func (t *Tracker) lookup(seq libpf.SequenceID) (*sequenceState, bool) {
	sequences := t.sequences.RLock()
	defer t.sequences.RUnlock(&sequences)
	st, ok := (*sequences)[seq]
	return st, ok
}

// StoreSample adds a sample to the pending samples of seq.
func (t *Tracker) StoreSample(seq libpf.SequenceID, sample Sample) {
	st := t.sequence(seq)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pending = append(st.pending, sample)
	st.state = Accumulating
	metrics.Add(metrics.IDSamplesStored, 1)
}

// ObservePacket records the index of a profile packet of seq. It returns false
// if the packet was seen before and must be dropped.
func (t *Tracker) ObservePacket(seq libpf.SequenceID, index uint64) bool {
	st := t.sequence(seq)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.hasPacketIndex {
		if index <= st.lastPacketIndex {
			log.Debugf("Sequence %d: dropping duplicate profile packet %d (last %d)",
				seq, index, st.lastPacketIndex)
			metrics.Add(metrics.IDDuplicatePackets, 1)
			return false
		}
		if missing := index - st.lastPacketIndex - 1; missing > 0 {
			log.Warnf("Sequence %d: %d profile packets missing before packet %d",
				seq, missing, index)
			metrics.Add(metrics.IDMissingPackets, metrics.MetricValue(missing))
		}
	}
	st.lastPacketIndex = index
	st.hasPacketIndex = true
	return true
}

// FinalizeDump commits the pending samples of seq as dump index. Dumps with
// an index that is not larger than the last finalized one are ignored and
// their samples are discarded.
//
// If the sink rejects the rows, the error is returned and the state of seq is
// left unchanged.
func (t *Tracker) FinalizeDump(ctx context.Context, seq libpf.SequenceID, index uint64,
	r Resolver) (Report, error) {
	st := t.sequence(seq)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.hasDumpIndex && index <= st.lastDumpIndex {
		log.Debugf("Sequence %d: ignoring finalization of dump %d (last %d)",
			seq, index, st.lastDumpIndex)
		metrics.Add(metrics.IDDuplicateDumps, 1)
		rep := Report{Sequence: seq, Index: index, Samples: len(st.pending), Duplicate: true}
		// The pending samples belong to the replayed dump.
		st.pending = nil
		st.state = Idle
		return rep, nil
	}

	rep, err := t.commit(ctx, st, r)
	rep.Index = index
	if err != nil {
		return rep, err
	}
	st.pending = nil
	st.state = Idle
	st.lastDumpIndex = index
	st.hasDumpIndex = true
	metrics.Add(metrics.IDDumpsFinalized, 1)
	return rep, nil
}

// CommitSamples writes the rows of the pending samples of seq like
// FinalizeDump, but keeps the samples pending and does not record a dump index.
func (t *Tracker) CommitSamples(ctx context.Context, seq libpf.SequenceID,
	r Resolver) (Report, error) {
	st := t.sequence(seq)
	st.mu.Lock()
	defer st.mu.Unlock()

	rep, err := t.commit(ctx, st, r)
	if err != nil {
		return rep, err
	}
	if len(st.pending) == 0 {
		st.state = Idle
	} else {
		st.state = Accumulating
	}
	return rep, nil
}

// DiscardPending drops the pending samples of seq without writing rows and
// returns their number. The totals of committed dumps are kept.
func (t *Tracker) DiscardPending(seq libpf.SequenceID) int {
	st, ok := t.lookup(seq)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	n := len(st.pending)
	st.pending = nil
	st.state = Idle
	return n
}

// commit writes the rows of the pending samples of st and applies the new
// totals. st.mu must be held.
func (t *Tracker) commit(ctx context.Context, st *sequenceState, r Resolver) (Report, error) {
	prevState := st.state
	st.state = Finalizing

	c := st.prepare(r, t.semantics)
	for _, w := range c.report.Warnings {
		log.Warn(w)
	}
	metrics.AddSlice([]metrics.Metric{
		{ID: metrics.IDSamplesDropped, Value: metrics.MetricValue(c.report.Dropped)},
		{ID: metrics.IDDeltasClamped, Value: metrics.MetricValue(c.report.Clamped)},
	})

	if len(c.rows) > 0 {
		if err := t.sink.WriteAllocations(ctx, c.rows); err != nil {
			st.state = prevState
			c.report.Rows = 0
			log.Errorf("Sequence %d: failed to write %d rows: %v", st.id, len(c.rows), err)
			return c.report, fmt.Errorf("sequence %d: writing %d rows: %w",
				st.id, len(c.rows), err)
		}
		metrics.Add(metrics.IDRowsCommitted, metrics.MetricValue(len(c.rows)))
	}
	st.apply(c)
	return c.report, nil
}

// Teardown drops all state of seq.
func (t *Tracker) Teardown(seq libpf.SequenceID) {
	sequences := t.sequences.WLock()
	defer t.sequences.WUnlock(&sequences)
	if st, ok := (*sequences)[seq]; ok {
		st.mu.Lock()
		if n := len(st.pending); n > 0 {
			log.Warnf("Sequence %d: discarding %d samples of an unfinished dump", seq, n)
		}
		st.mu.Unlock()
		delete(*sequences, seq)
	}
}

// Sequences returns the tracked sequences in ascending order.
func (t *Tracker) Sequences() []libpf.SequenceID {
	sequences := t.sequences.RLock()
	defer t.sequences.RUnlock(&sequences)
	return slices.Sorted(maps.Keys(*sequences))
}

// State returns the lifecycle state of seq.
func (t *Tracker) State(seq libpf.SequenceID) (State, bool) {
	st, ok := t.lookup(seq)
	if !ok {
		return Idle, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state, true
}

// Pending returns the number of pending samples of seq.
func (t *Tracker) Pending(seq libpf.SequenceID) int {
	st, ok := t.lookup(seq)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.pending)
}

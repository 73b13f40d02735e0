// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package interning keeps the interning state of trace-writer sequences.
//
// Producers send each string, mapping, frame and callstack once per sequence
// and refer to it by a small integer id afterwards. A Table records these
// bindings for one sequence and resolves callstack ids into callsites of the
// trace wide Catalog.
package interning // import "go.opentelemetry.io/profile-ingest/interning"

import (
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/libpf/freelru"
	"go.opentelemetry.io/profile-ingest/libpf/hash"
	"go.opentelemetry.io/profile-ingest/metrics"
	"go.opentelemetry.io/profile-ingest/tracereader"
)

// Table holds the interned entities of one sequence. Bindings are append only:
// once an id is bound, binding it to a different entity is rejected.
//
// A Table is not safe for concurrent use. Each sequence is processed by a
// single goroutine.
type Table struct {
	seq     libpf.SequenceID
	catalog *Catalog

	strings    map[uint64]libpf.String
	mappings   map[uint64]tracereader.Mapping
	frames     map[uint64]tracereader.Frame
	callstacks map[uint64][]uint64

	// Memoized resolution results. Bindings never change, so entries are
	// never invalidated.
	resolvedMappings map[uint64]libpf.Mapping
	resolvedFrames   map[uint64]libpf.FrameID
	resolvedStacks   *freelru.LRU[uint64, libpf.CallsiteID]
}

// NewTable returns an empty Table for seq that resolves into catalog. Up to
// cacheSize resolved callstacks are memoized.
func NewTable(seq libpf.SequenceID, catalog *Catalog, cacheSize uint32) (*Table, error) {
	stacks, err := freelru.New[uint64, libpf.CallsiteID](cacheSize, hash.Uint64Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create callstack cache: %w", err)
	}
	return &Table{
		seq:              seq,
		catalog:          catalog,
		strings:          make(map[uint64]libpf.String),
		mappings:         make(map[uint64]tracereader.Mapping),
		frames:           make(map[uint64]tracereader.Frame),
		callstacks:       make(map[uint64][]uint64),
		resolvedMappings: make(map[uint64]libpf.Mapping),
		resolvedFrames:   make(map[uint64]libpf.FrameID),
		resolvedStacks:   stacks,
	}, nil
}

// Sequence returns the sequence the Table belongs to.
func (t *Table) Sequence() libpf.SequenceID {
	return t.seq
}

func (t *Table) conflict(kind Kind, id uint64) error {
	metrics.Add(metrics.IDInterningConflicts, 1)
	err := &ConflictError{Sequence: t.seq, Kind: kind, ID: id}
	log.Warnf("Keeping previous binding: %v", err)
	return err
}

func (t *Table) unresolved(kind Kind, id uint64) error {
	return &UnresolvedReferenceError{Sequence: t.seq, Kind: kind, ID: id}
}

// InternString binds id to the contents of s. The bytes are copied.
func (t *Table) InternString(id uint64, s []byte) error {
	str := libpf.InternBytes(s)
	if old, ok := t.strings[id]; ok {
		if old != str {
			return t.conflict(KindString, id)
		}
		return nil
	}
	t.strings[id] = str
	return nil
}

// InternMapping binds m.ID to m.
func (t *Table) InternMapping(m tracereader.Mapping) error {
	if old, ok := t.mappings[m.ID]; ok {
		if !equalMappings(old, m) {
			return t.conflict(KindMapping, m.ID)
		}
		return nil
	}
	t.mappings[m.ID] = m
	return nil
}

func equalMappings(a, b tracereader.Mapping) bool {
	return a.ID == b.ID &&
		a.BuildID == b.BuildID &&
		a.StartOffset == b.StartOffset &&
		a.Start == b.Start &&
		a.End == b.End &&
		a.LoadBias == b.LoadBias &&
		a.ExactOffset == b.ExactOffset &&
		slices.Equal(a.PathStringIDs, b.PathStringIDs)
}

// InternFrame binds f.ID to f.
func (t *Table) InternFrame(f tracereader.Frame) error {
	if old, ok := t.frames[f.ID]; ok {
		if old != f {
			return t.conflict(KindFrame, f.ID)
		}
		return nil
	}
	t.frames[f.ID] = f
	return nil
}

// InternCallstack binds c.ID to the frames of c.
func (t *Table) InternCallstack(c tracereader.Callstack) error {
	if old, ok := t.callstacks[c.ID]; ok {
		if !slices.Equal(old, c.FrameIDs) {
			return t.conflict(KindCallstack, c.ID)
		}
		return nil
	}
	t.callstacks[c.ID] = slices.Clone(c.FrameIDs)
	return nil
}

// InternPacket binds all interning records of a profile packet. Conflicting
// records are skipped and the first conflict is returned.
func (t *Table) InternPacket(p *tracereader.ProfilePacket) error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	for _, s := range p.Strings {
		if err := t.InternString(s.ID, s.Str.Data()); err != nil {
			keep(err)
		}
	}
	for _, m := range p.Mappings {
		if err := t.InternMapping(m); err != nil {
			keep(err)
		}
	}
	for _, f := range p.Frames {
		if err := t.InternFrame(f); err != nil {
			keep(err)
		}
	}
	for _, c := range p.Callstacks {
		if err := t.InternCallstack(c); err != nil {
			keep(err)
		}
	}
	return first
}

// ResolveString returns the string bound to id.
func (t *Table) ResolveString(id uint64) (libpf.String, error) {
	if s, ok := t.strings[id]; ok {
		return s, nil
	}
	return libpf.NullString, t.unresolved(KindString, id)
}

// optionalString resolves a string reference where id 0 stands for no string.
func (t *Table) optionalString(id uint64) (libpf.String, error) {
	s, err := t.ResolveString(id)
	if err != nil && id == 0 {
		return libpf.NullString, nil
	}
	return s, err
}

// ResolveMapping returns the mapping bound to id with its strings resolved.
func (t *Table) ResolveMapping(id uint64) (libpf.Mapping, error) {
	if m, ok := t.resolvedMappings[id]; ok {
		return m, nil
	}
	rec, ok := t.mappings[id]
	if !ok {
		return libpf.Mapping{}, t.unresolved(KindMapping, id)
	}

	buildID, err := t.optionalString(rec.BuildID)
	if err != nil {
		return libpf.Mapping{}, err
	}
	var path strings.Builder
	for _, component := range rec.PathStringIDs {
		s, err := t.ResolveString(component)
		if err != nil {
			return libpf.Mapping{}, err
		}
		path.WriteByte('/')
		path.WriteString(s.String())
	}

	m := libpf.NewMapping(libpf.MappingData{
		BuildID:     buildID,
		Path:        libpf.Intern(path.String()),
		Start:       libpf.Address(rec.Start),
		End:         libpf.Address(rec.End),
		StartOffset: rec.StartOffset,
		LoadBias:    rec.LoadBias,
		ExactOffset: rec.ExactOffset,
	})
	t.resolvedMappings[id] = m
	return m, nil
}

// ResolveFrame returns the catalog id of the frame bound to id.
func (t *Table) ResolveFrame(id uint64) (libpf.FrameID, error) {
	if f, ok := t.resolvedFrames[id]; ok {
		return f, nil
	}
	rec, ok := t.frames[id]
	if !ok {
		return 0, t.unresolved(KindFrame, id)
	}

	name, err := t.optionalString(rec.FunctionNameID)
	if err != nil {
		return 0, err
	}
	mapping, err := t.ResolveMapping(rec.MappingID)
	if err != nil && rec.MappingID != 0 {
		return 0, err
	}

	f := t.catalog.InternFrame(libpf.Frame{
		FunctionName: name,
		Mapping:      mapping,
		RelPC:        rec.RelPC,
	})
	t.resolvedFrames[id] = f
	return f, nil
}

// ResolveCallstack returns the catalog callsite of the callstack bound to id.
func (t *Table) ResolveCallstack(id uint64) (libpf.CallsiteID, error) {
	if cs, ok := t.resolvedStacks.Get(id); ok {
		return cs, nil
	}
	frameIDs, ok := t.callstacks[id]
	if !ok {
		return 0, t.unresolved(KindCallstack, id)
	}
	if len(frameIDs) > MaxCallstackDepth {
		return 0, fmt.Errorf("sequence %d: callstack %d has %d frames: %w",
			t.seq, id, len(frameIDs), ErrDepthLimit)
	}

	frames := make([]libpf.FrameID, len(frameIDs))
	for i, frameID := range frameIDs {
		f, err := t.ResolveFrame(frameID)
		if err != nil {
			return 0, err
		}
		frames[i] = f
	}
	cs, err := t.catalog.InternCallstack(frames)
	if err != nil {
		return 0, fmt.Errorf("sequence %d: callstack %d: %w", t.seq, id, err)
	}
	t.resolvedStacks.Add(id, cs)
	return cs, nil
}

// ReportMetrics forwards and resets the callstack cache statistics.
func (t *Table) ReportMetrics() {
	stats := t.resolvedStacks.GetAndResetStatistics()
	metrics.AddSlice([]metrics.Metric{
		{ID: metrics.IDCallstackCacheHit, Value: metrics.MetricValue(stats.Hit)},
		{ID: metrics.IDCallstackCacheMiss, Value: metrics.MetricValue(stats.Miss)},
	})
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package interning // import "go.opentelemetry.io/profile-ingest/interning"

import (
	"maps"
	"slices"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/libpf/xsync"
)

// Registry owns the Tables of all sequences of a trace. Tables are created on
// first use and share one Catalog.
type Registry struct {
	catalog   *Catalog
	cacheSize uint32
	tables    xsync.RWMutex[map[libpf.SequenceID]*Table]
}

// NewRegistry returns a Registry whose Tables resolve into catalog and memoize
// up to cacheSize callstacks each.
func NewRegistry(catalog *Catalog, cacheSize uint32) *Registry {
	return &Registry{
		catalog:   catalog,
		cacheSize: cacheSize,
		tables:    xsync.NewRWMutex(map[libpf.SequenceID]*Table{}),
	}
}

// Catalog returns the Catalog shared by all Tables.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Table returns the Table of seq, creating it if needed.
func (r *Registry) Table(seq libpf.SequenceID) (*Table, error) {
	tables := r.tables.RLock()
	t, ok := (*tables)[seq]
	r.tables.RUnlock(&tables)
	if ok {
		return t, nil
	}

	wtables := r.tables.WLock()
	defer r.tables.WUnlock(&wtables)
	if t, ok := (*wtables)[seq]; ok {
		return t, nil
	}
	t, err := NewTable(seq, r.catalog, r.cacheSize)
	if err != nil {
		return nil, err
	}
	(*wtables)[seq] = t
	return t, nil
}

// Reset drops the interning state of seq. Catalog entries stay valid.
func (r *Registry) Reset(seq libpf.SequenceID) {
	tables := r.tables.WLock()
	defer r.tables.WUnlock(&tables)
	if t, ok := (*tables)[seq]; ok {
		t.ReportMetrics()
		delete(*tables, seq)
		log.Debugf("Dropped interning state of sequence %d", seq)
	}
}

// Sequences returns the sequences that have a Table, in ascending order.
func (r *Registry) Sequences() []libpf.SequenceID {
	tables := r.tables.RLock()
	defer r.tables.RUnlock(&tables)
	return slices.Sorted(maps.Keys(*tables))
}

// ReportMetrics forwards the cache statistics of all Tables.
func (r *Registry) ReportMetrics() {
	tables := r.tables.RLock()
	defer r.tables.RUnlock(&tables)
	for _, t := range *tables {
		t.ReportMetrics()
	}
}

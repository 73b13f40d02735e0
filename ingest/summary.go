// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ingest // import "go.opentelemetry.io/profile-ingest/ingest"

import (
	"go.opentelemetry.io/profile-ingest/heapprofile"
)

// Summary counts what a Pipeline run processed.
type Summary struct {
	// Packets is the number of TracePackets read.
	Packets uint64
	// SkippedFields is the number of Trace fields that were not packets.
	SkippedFields uint64
	// Malformed is the number of packets that could not be decoded.
	Malformed uint64
	// ProfilePackets is the number of packets carrying a heap profile.
	ProfilePackets uint64
	// DuplicatePackets is the number of profile packets seen before.
	DuplicatePackets uint64

	Dumps           int
	DuplicateDumps  int
	IncompleteDumps int

	Samples int
	Rows    int
	Dropped int
	Clamped int
	// Discarded is the number of samples dropped because the interning state
	// of their sequence was cleared before their dump ended.
	Discarded int
}

func (s *Summary) add(r *heapprofile.Report) {
	if r.Duplicate {
		s.DuplicateDumps++
		return
	}
	s.Dumps++
	s.Samples += r.Samples
	s.Rows += r.Rows
	s.Dropped += r.Dropped
	s.Clamped += r.Clamped
}

func (s *Summary) merge(o *Summary) {
	s.Packets += o.Packets
	s.SkippedFields += o.SkippedFields
	s.Malformed += o.Malformed
	s.ProfilePackets += o.ProfilePackets
	s.DuplicatePackets += o.DuplicatePackets
	s.Dumps += o.Dumps
	s.DuplicateDumps += o.DuplicateDumps
	s.IncompleteDumps += o.IncompleteDumps
	s.Samples += o.Samples
	s.Rows += o.Rows
	s.Dropped += o.Dropped
	s.Clamped += o.Clamped
	s.Discarded += o.Discarded
}

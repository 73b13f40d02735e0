// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package traceblob // import "go.opentelemetry.io/profile-ingest/traceblob"

import "sync/atomic"

// Stats contains process wide Blob accounting.
type Stats struct {
	// LiveBlobs is the number of Blobs that have not been released yet.
	LiveBlobs uint64
	// LiveBytes is the sum of the sizes of all live Blobs.
	LiveBytes uint64
	// ReleasedBlobs is the cumulative number of released Blobs.
	ReleasedBlobs uint64
	// ReleasedBytes is the cumulative number of released bytes.
	ReleasedBytes uint64
}

var counters struct {
	allocated      atomic.Uint64
	allocatedBytes atomic.Uint64
	released       atomic.Uint64
	releasedBytes  atomic.Uint64
}

// GetStats returns Blob memory statistics.
func GetStats() Stats {
	released := counters.released.Load()
	releasedBytes := counters.releasedBytes.Load()
	return Stats{
		LiveBlobs:     counters.allocated.Load() - released,
		LiveBytes:     counters.allocatedBytes.Load() - releasedBytes,
		ReleasedBlobs: released,
		ReleasedBytes: releasedBytes,
	}
}

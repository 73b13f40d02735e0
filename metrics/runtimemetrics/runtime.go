// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtimemetrics periodically reports process and trace blob metrics.
package runtimemetrics // import "go.opentelemetry.io/profile-ingest/metrics/runtimemetrics"

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/profile-ingest/metrics"
	"go.opentelemetry.io/profile-ingest/periodiccaller"
	"go.opentelemetry.io/profile-ingest/traceblob"
)

// collector holds the values of the previous collection.
type collector struct {
	// utime represents the user time in usec.
	utime unix.Timeval
	// stime represents the system time in usec.
	stime unix.Timeval
	// releasedBlobs is the cumulative number of released blobs.
	releasedBlobs uint64
}

// timeDelta calculates the difference between two time values
// and returns the difference in milliseconds.
func timeDelta(now, prev unix.Timeval) int64 {
	secDelta := (now.Sec - prev.Sec) * 1000
	usecDelta := (now.Usec - prev.Usec) / 1000
	return secDelta + usecDelta
}

// collect returns the metrics accumulated since the previous call.
func (c *collector) collect() []metrics.Metric {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	blobs := traceblob.GetStats()

	released := blobs.ReleasedBlobs - c.releasedBlobs
	c.releasedBlobs = blobs.ReleasedBlobs

	out := []metrics.Metric{
		{ID: metrics.IDGoRoutines, Value: metrics.MetricValue(runtime.NumGoroutine())},
		{ID: metrics.IDHeapAlloc, Value: metrics.MetricValue(stats.HeapAlloc)},
		{ID: metrics.IDBlobsLive, Value: metrics.MetricValue(blobs.LiveBlobs)},
		{ID: metrics.IDBlobBytesLive, Value: metrics.MetricValue(blobs.LiveBytes)},
		{ID: metrics.IDBlobsReleased, Value: metrics.MetricValue(released)},
	}

	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		log.Errorf("Failed to fetch Rusage: %v", err)
		return out
	}
	out = append(out,
		metrics.Metric{ID: metrics.IDUTime,
			Value: metrics.MetricValue(timeDelta(rusage.Utime, c.utime))},
		metrics.Metric{ID: metrics.IDSTime,
			Value: metrics.MetricValue(timeDelta(rusage.Stime, c.stime))},
	)
	c.utime = rusage.Utime
	c.stime = rusage.Stime
	return out
}

// Start starts the periodic collection. The returned function stops it and
// reports a final collection.
func Start(ctx context.Context, interval time.Duration) (func(), error) {
	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		return func() {}, err
	}
	c := &collector{
		utime:         rusage.Utime,
		stime:         rusage.Stime,
		releasedBlobs: traceblob.GetStats().ReleasedBlobs,
	}

	stopReporting := periodiccaller.Start(ctx, interval, func() {
		metrics.AddSlice(c.collect())
	})

	return func() {
		stopReporting()
		metrics.AddSlice(c.collect())
	}, nil
}

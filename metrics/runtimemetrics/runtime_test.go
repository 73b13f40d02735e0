// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package runtimemetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/profile-ingest/metrics"
	"go.opentelemetry.io/profile-ingest/traceblob"
)

func TestTimeDelta(t *testing.T) {
	tests := map[string]struct {
		now   unix.Timeval
		prev  unix.Timeval
		delta int64
	}{
		"1000ms":          {now: unix.Timeval{Sec: 1}, prev: unix.Timeval{}, delta: 1000},
		"1ms":             {now: unix.Timeval{Usec: 1000}, prev: unix.Timeval{}, delta: 1},
		"delta too small": {now: unix.Timeval{Usec: 500}, prev: unix.Timeval{}, delta: 0},
		"998 ms": {
			now:   unix.Timeval{Sec: 1, Usec: 1000},
			prev:  unix.Timeval{Usec: 3000},
			delta: 998,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.delta, timeDelta(tc.now, tc.prev))
		})
	}
}

func TestCollectBlobs(t *testing.T) {
	c := &collector{releasedBlobs: traceblob.GetStats().ReleasedBlobs}

	blob := traceblob.NewBlob(make([]byte, 16))
	blob.Discard()

	got := make(map[metrics.MetricID]metrics.MetricValue)
	for _, m := range c.collect() {
		got[m.ID] = m.Value
	}
	assert.Equal(t, metrics.MetricValue(1), got[metrics.IDBlobsReleased])
	assert.Positive(t, got[metrics.IDGoRoutines])
	assert.Contains(t, got, metrics.MetricID(metrics.IDUTime))

	// Released blobs are only counted once.
	for _, m := range c.collect() {
		if m.ID == metrics.IDBlobsReleased {
			assert.Zero(t, m.Value)
		}
	}
}

func TestStart(t *testing.T) {
	stop, err := Start(context.Background(), time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	stop()

	assert.Positive(t, metrics.Snapshot()[metrics.IDGoRoutines])
}

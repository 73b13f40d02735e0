// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package periodiccaller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPeriodicCaller tests periodic calling for all exported periodiccaller functions
func TestPeriodicCaller(t *testing.T) {
	interval := 10 * time.Millisecond

	tests := map[string]func(context.Context, func()) func(){
		"Start": func(ctx context.Context, cb func()) func() {
			return Start(ctx, interval, cb)
		},
		"StartWithJitter": func(ctx context.Context, cb func()) func() {
			return StartWithJitter(ctx, interval, 0.2, cb)
		},
	}

	for name, testFunc := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan bool, 1)
			var counter atomic.Int32
			stop := testFunc(ctx, func() {
				if counter.Add(1) == 3 {
					done <- true
				}
			})
			defer stop()

			select {
			case <-done:
			case <-time.After(time.Second):
				require.Fail(t, "callback was not called often enough")
			}
		})
	}
}

func TestStopWaitsForCallback(t *testing.T) {
	var running, finished atomic.Bool
	started := make(chan bool, 1)
	stop := Start(context.Background(), time.Millisecond, func() {
		if running.Swap(true) {
			return
		}
		started <- true
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	stop()
	assert.True(t, finished.Load())
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/profile-ingest/heapprofile"
	"go.opentelemetry.io/profile-ingest/internal/compression"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Input = "trace.pb"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, heapprofile.SinceProcessStart, cfg.Counters)
	assert.Equal(t, compression.Zstd, cfg.OutputCompression)
	require.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"no input":              func(c *Config) { c.Input = "" },
		"bad input compression": func(c *Config) { c.InputCompression = "rar" },
		"no workers":            func(c *Config) { c.Workers = 0 },
		"too many workers":      func(c *Config) { c.Workers = MaxWorkers + 1 },
		"no queue":              func(c *Config) { c.QueueSize = 0 },
		"small read buffer":     func(c *Config) { c.ReadBufferSize = 512 },
		"no callstack cache":    func(c *Config) { c.CallstackCacheSize = 0 },
		"no batch rows":         func(c *Config) { c.Batch.BatchRows = 0 },
		"jitter":                func(c *Config) { c.Batch.Jitter = 2 },
		"short metrics":         func(c *Config) { c.MetricsInterval = time.Millisecond },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	t.Run("metrics disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.MetricsInterval = 0
		cfg.InputCompression = "gzip"
		require.NoError(t, cfg.Validate())
	})
}

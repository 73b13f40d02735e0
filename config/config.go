// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the settings of a trace ingestion run.
package config // import "go.opentelemetry.io/profile-ingest/config"

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tklauser/numcpus"

	"go.opentelemetry.io/profile-ingest/heapprofile"
	"go.opentelemetry.io/profile-ingest/internal/compression"
	"go.opentelemetry.io/profile-ingest/storage"
)

const (
	// MaxWorkers limits the number of ingestion workers.
	MaxWorkers = 256

	defaultCallstackCacheSize = 16384
	defaultQueueSize          = 64
	defaultReadBufferSize     = 1 << 20
)

// Config is the configuration of a trace ingestion run.
type Config struct {
	// Input is a file path or s3://bucket/key URL of the trace.
	Input string
	// InputCompression overrides the compression derived from the input name.
	InputCompression string
	// Output is the path of the export file. Empty disables the export.
	Output string
	// OutputCompression is the compression of the export file.
	OutputCompression compression.Compression

	Counters heapprofile.CounterSemantics
	// FlushIncomplete commits the samples of dumps that did not finish before
	// the end of the trace.
	FlushIncomplete bool

	Workers            int
	QueueSize          int
	ReadBufferSize     int
	CallstackCacheSize uint32
	Demangle           bool

	Batch storage.BatchConfig

	MetricsInterval time.Duration
	Verbose         bool

	// Written in Default()
	PresentCPUCores int
}

// Default returns the default configuration.
func Default() *Config {
	presentCores, err := numcpus.GetPresent()
	if err != nil {
		log.Errorf("Failed to read CPU file: %v", err)
	}

	return &Config{
		OutputCompression:  compression.Zstd,
		Counters:           heapprofile.SinceProcessStart,
		Workers:            max(1, presentCores),
		QueueSize:          defaultQueueSize,
		ReadBufferSize:     defaultReadBufferSize,
		CallstackCacheSize: defaultCallstackCacheSize,
		Batch: storage.BatchConfig{
			BatchRows:     4096,
			QueueBatches:  16,
			FlushInterval: 5 * time.Second,
			Jitter:        0.2,
		},
		MetricsInterval: 10 * time.Second,
		PresentCPUCores: presentCores,
	}
}

// Validate checks if the configuration is valid.
func (cfg *Config) Validate() error {
	if cfg.Input == "" {
		return errors.New("an input trace must be given")
	}

	if cfg.InputCompression != "" {
		if _, err := compression.Parse(cfg.InputCompression); err != nil {
			return fmt.Errorf("invalid input compression: %v", err)
		}
	}

	if cfg.Workers <= 0 || cfg.Workers > MaxWorkers {
		return fmt.Errorf("workers must be within [1..%d]", MaxWorkers)
	}

	if cfg.QueueSize <= 0 {
		return errors.New("queue size must be > 0")
	}

	if cfg.ReadBufferSize < 4096 {
		return errors.New("read buffer size must be at least 4096 bytes")
	}

	if cfg.CallstackCacheSize == 0 {
		return errors.New("callstack cache size must be > 0")
	}

	if err := cfg.Batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch configuration: %v", err)
	}

	if cfg.MetricsInterval != 0 && cfg.MetricsInterval < time.Second {
		return errors.New("the metrics interval has to be 0 or at least 1 second (1s)")
	}

	return nil
}

// Dump logs the configuration at debug level.
func (cfg *Config) Dump() {
	log.Debug("Config:")
	log.Debugf("input: %q (compression %q)", cfg.Input, cfg.InputCompression)
	log.Debugf("output: %q (compression %s)", cfg.Output, cfg.OutputCompression)
	log.Debugf("counters: %s, flush incomplete: %v", cfg.Counters, cfg.FlushIncomplete)
	log.Debugf("workers: %d, queue size: %d, read buffer: %d",
		cfg.Workers, cfg.QueueSize, cfg.ReadBufferSize)
	log.Debugf("callstack cache: %d, demangle: %v", cfg.CallstackCacheSize, cfg.Demangle)
	log.Debugf("batch: %+v", cfg.Batch)
	log.Debugf("metrics interval: %v", cfg.MetricsInterval)
}

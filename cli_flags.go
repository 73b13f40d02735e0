// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/peterbourgon/ff/v3"

	"go.opentelemetry.io/profile-ingest/config"
	"go.opentelemetry.io/profile-ingest/tracesource"
)

// Help strings for command line arguments
var (
	inputHelp = "Trace to ingest: a file path or an s3://bucket/key URL. " +
		"May also be given as the only positional argument."
	inputCompressionHelp = "Compression of the input trace (none, gzip, zstd, s2, lz4, " +
		"brotli). Derived from the file extension if empty."
	outputHelp            = "Path of the JSON lines export of all allocation rows."
	outputCompressionHelp = "Compression of the export (none, gzip, zstd, s2, lz4, brotli)."
	countersHelp          = "Meaning of the heap sample counters: since-process-start " +
		"(rows hold the difference to the previous dump) or since-dump-start " +
		"(rows hold the counters as they are)."
	flushIncompleteHelp = "Commit the samples of dumps that are still open when the trace ends."
	workersHelp         = fmt.Sprintf("Number of ingestion workers, at most %d. "+
		"Defaults to the number of present CPU cores.", config.MaxWorkers)
	queueSizeHelp       = "Number of decoded packets buffered per worker."
	readBufferHelp      = "Size of the chunks streamed traces are read in."
	callstackCacheHelp  = "Number of resolved callstacks memoized per sequence."
	demangleHelp        = "Demangle function names."
	batchRowsHelp       = "Number of buffered rows that triggers a write to the export."
	queueBatchesHelp    = "Maximum number of batches buffered while the export is failing."
	flushIntervalHelp   = "Interval of background flushes of buffered rows. 0 disables them."
	metricsIntervalHelp = "Interval of runtime metric collection. 0 disables it."
	s3RegionHelp        = "Region of the S3 bucket. Defaults to the AWS configuration."
	s3EndpointHelp      = "Base URL of an S3 compatible service."
	s3PathStyleHelp     = "Use path style S3 addressing."
	pprofHelp           = "Listening address (e.g. localhost:6060) to serve pprof information."
	verboseModeHelp     = "Enable verbose logging and debugging capabilities."
	versionHelp         = "Show version."
	configHelp          = "Path of a config file with one 'flag value' pair per line."
)

type arguments struct {
	cfg       *config.Config
	s3        tracesource.S3Options
	pprofAddr string
	version   bool

	fs *flag.FlagSet
}

func parseArgs(argv []string) (*arguments, error) {
	args := arguments{cfg: config.Default()}
	cfg := args.cfg

	fs := flag.NewFlagSet("profile-ingest", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.IntVar(&cfg.Batch.BatchRows, "batch-rows", cfg.Batch.BatchRows, batchRowsHelp)

	fs.Func("callstack-cache", callstackCacheHelp, func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return err
		}
		cfg.CallstackCacheSize = uint32(n)
		return nil
	})

	fs.String("config", "", configHelp)

	fs.TextVar(&cfg.Counters, "counters", cfg.Counters, countersHelp)

	fs.BoolVar(&cfg.Demangle, "demangle", false, demangleHelp)

	fs.DurationVar(&cfg.Batch.FlushInterval, "flush-interval", cfg.Batch.FlushInterval,
		flushIntervalHelp)
	fs.BoolVar(&cfg.FlushIncomplete, "flush-incomplete", false, flushIncompleteHelp)

	fs.StringVar(&cfg.Input, "i", "", "Shorthand for -input.")
	fs.StringVar(&cfg.Input, "input", "", inputHelp)
	fs.StringVar(&cfg.InputCompression, "input-compression", "", inputCompressionHelp)

	fs.DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval,
		metricsIntervalHelp)

	fs.StringVar(&cfg.Output, "o", "", "Shorthand for -output.")
	fs.StringVar(&cfg.Output, "output", "", outputHelp)
	fs.TextVar(&cfg.OutputCompression, "output-compression", cfg.OutputCompression,
		outputCompressionHelp)

	fs.StringVar(&args.pprofAddr, "pprof", "", pprofHelp)

	fs.IntVar(&cfg.Batch.QueueBatches, "queue-batches", cfg.Batch.QueueBatches,
		queueBatchesHelp)
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, queueSizeHelp)

	fs.IntVar(&cfg.ReadBufferSize, "read-buffer", cfg.ReadBufferSize, readBufferHelp)

	fs.StringVar(&args.s3.Endpoint, "s3-endpoint", "", s3EndpointHelp)
	fs.BoolVar(&args.s3.UsePathStyle, "s3-path-style", false, s3PathStyleHelp)
	fs.StringVar(&args.s3.Region, "s3-region", "", s3RegionHelp)

	fs.BoolVar(&cfg.Verbose, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&cfg.Verbose, "verbose", false, verboseModeHelp)
	fs.BoolVar(&args.version, "version", false, versionHelp)

	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, workersHelp)

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: profile-ingest [flags] [trace]\n\n")
		fs.PrintDefaults()
	}

	args.fs = fs

	err := ff.Parse(fs, argv,
		ff.WithEnvVarPrefix("PROFILE_INGEST"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	)
	if err != nil {
		return nil, err
	}

	switch rest := fs.Args(); {
	case len(rest) > 1:
		return nil, fmt.Errorf("unexpected arguments %q", rest[1:])
	case len(rest) == 1 && cfg.Input != "":
		return nil, fmt.Errorf("input given twice: %q and %q", cfg.Input, rest[0])
	case len(rest) == 1:
		cfg.Input = rest[0]
	}
	return &args, nil
}

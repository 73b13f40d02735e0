// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// profile-ingest reads a heap profile trace and turns its cumulative samples
// into per dump allocation rows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"

	//nolint:gosec
	_ "net/http/pprof"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/profile-ingest/config"
	"go.opentelemetry.io/profile-ingest/ingest"
	"go.opentelemetry.io/profile-ingest/interning"
	"go.opentelemetry.io/profile-ingest/metrics"
	"go.opentelemetry.io/profile-ingest/metrics/runtimemetrics"
	"go.opentelemetry.io/profile-ingest/storage"
	"go.opentelemetry.io/profile-ingest/traceblob"
	"go.opentelemetry.io/profile-ingest/tracesource"
	"go.opentelemetry.io/profile-ingest/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return parseError("Failure to parse arguments: %v", err)
	}

	if args.version {
		fmt.Printf("%s\n", vc.Version())
		return exitSuccess
	}

	cfg := args.cfg
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if err = cfg.Validate(); err != nil {
		return parseError("Invalid configuration: %v", err)
	}

	// Context to drive main goroutine and the background flushes.
	mainCtx, mainCancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer mainCancel()

	if args.pprofAddr != "" {
		go func() {
			//nolint:gosec
			if err := http.ListenAndServe(args.pprofAddr, nil); err != nil {
				log.Errorf("Serving pprof on %s failed: %s", args.pprofAddr, err)
			}
		}()
	}

	log.Infof("Starting profile-ingest %s (revision %s, build timestamp %s)",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())

	if cfg.MetricsInterval > 0 {
		stopMetrics, err := runtimemetrics.Start(mainCtx, cfg.MetricsInterval)
		if err != nil {
			return failure("Error starting the runtime metric collection: %v", err)
		}
		defer stopMetrics()
	}

	summary, err := ingestTrace(mainCtx, args)
	if err != nil {
		return failure("Failed to ingest %s: %v", cfg.Input, err)
	}
	printSummary(os.Stdout, cfg, &summary)
	return exitSuccess
}

// ingestTrace runs the pipeline over the configured input and writes the rows
// to the configured output.
func ingestTrace(ctx context.Context, args *arguments) (summary ingest.Summary, err error) {
	cfg := args.cfg
	catalog := interning.NewCatalog(cfg.Demangle)

	var next storage.Writer = storage.WriterFunc(
		func(context.Context, []storage.AllocationRow) error { return nil })
	if cfg.Output != "" {
		export, err := storage.CreateExport(cfg.Output, cfg.OutputCompression, catalog)
		if err != nil {
			return summary, fmt.Errorf("failed to create export: %w", err)
		}
		defer func() {
			if cerr := export.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close export: %w", cerr)
			}
			log.Infof("Wrote %d rows to %s", export.Rows(), cfg.Output)
		}()
		next = export
	}

	batch, err := storage.NewBatchWriter(ctx, next, cfg.Batch)
	if err != nil {
		return summary, err
	}
	defer func() {
		// Buffered rows are written even if the run was interrupted.
		if cerr := batch.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("failed to flush rows: %w", cerr)
		}
	}()

	var client tracesource.ObjectGetter
	if tracesource.IsS3(cfg.Input) {
		if client, err = tracesource.NewS3Client(ctx, args.s3); err != nil {
			return summary, err
		}
	}
	src, err := tracesource.NewOpener(client).Open(ctx, cfg.Input, cfg.InputCompression)
	if err != nil {
		return summary, err
	}
	defer src.Close()

	pipeline, err := ingest.New(catalog, batch, ingest.Config{
		Workers:            cfg.Workers,
		QueueSize:          cfg.QueueSize,
		CallstackCacheSize: cfg.CallstackCacheSize,
		Counters:           cfg.Counters,
		FlushIncomplete:    cfg.FlushIncomplete,
	})
	if err != nil {
		return summary, err
	}

	if blob, ok := src.Blob(); ok {
		trace, err := traceblob.NewView(blob, 0, traceblob.WholeBlob)
		if err != nil {
			blob.Discard()
			return summary, err
		}
		defer trace.Release()
		return pipeline.Run(ctx, trace)
	}
	r, _ := src.Reader()
	return pipeline.RunReader(ctx, r, cfg.ReadBufferSize)
}

func printSummary(w io.Writer, cfg *config.Config, s *ingest.Summary) {
	fmt.Fprintf(w, "Trace:      %s\n", cfg.Input)
	fmt.Fprintf(w, "Packets:    %d (%d profile, %d duplicate, %d malformed)\n",
		s.Packets, s.ProfilePackets, s.DuplicatePackets, s.Malformed)
	fmt.Fprintf(w, "Dumps:      %d (%d duplicate, %d incomplete)\n",
		s.Dumps, s.DuplicateDumps, s.IncompleteDumps)
	fmt.Fprintf(w, "Samples:    %d (%d dropped, %d discarded)\n",
		s.Samples, s.Dropped, s.Discarded)
	fmt.Fprintf(w, "Rows:       %d (%d clamped deltas)\n", s.Rows, s.Clamped)

	defs, err := metrics.GetDefinitions()
	if err != nil {
		log.Errorf("Failed to read metric definitions: %v", err)
		return
	}
	snapshot := metrics.Snapshot()
	var lines []string
	for _, d := range defs {
		if v, ok := snapshot[d.ID]; ok && !d.Obsolete {
			lines = append(lines, fmt.Sprintf("  %-32s %d", d.Name, v))
		}
	}
	if len(lines) == 0 {
		return
	}
	slices.Sort(lines)
	fmt.Fprintf(w, "Metrics:\n%s\n", strings.Join(lines, "\n"))
}

func parseError(msg string, args ...interface{}) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...interface{}) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}

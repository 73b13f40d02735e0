// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest decodes the packets of a trace and forwards their interning
// records and heap samples to the per-sequence state that produces allocation
// rows.
//
// Packets are sharded over a fixed number of workers by sequence id, so all
// packets of one sequence are handled by the same worker in trace order.
package ingest // import "go.opentelemetry.io/profile-ingest/ingest"

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/profile-ingest/heapprofile"
	"go.opentelemetry.io/profile-ingest/interning"
	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/storage"
	"go.opentelemetry.io/profile-ingest/traceblob"
	"go.opentelemetry.io/profile-ingest/tracereader"
)

// Config configures a Pipeline.
type Config struct {
	// Workers is the number of goroutines that handle packets.
	Workers int
	// QueueSize is the number of decoded packets buffered per worker.
	QueueSize int
	// CallstackCacheSize is the number of resolved callstacks memoized per
	// sequence.
	CallstackCacheSize uint32
	// Counters defines how the counters of heap samples are interpreted.
	Counters heapprofile.CounterSemantics
	// FlushIncomplete commits the samples of dumps that are still open when
	// the trace ends. Otherwise they are discarded.
	FlushIncomplete bool
}

// Pipeline turns the packets of one trace into allocation rows.
type Pipeline struct {
	cfg      Config
	registry *interning.Registry
	tracker  *heapprofile.Tracker
}

// New returns a Pipeline that interns into catalog and writes rows to sink.
func New(catalog *interning.Catalog, sink storage.Writer, cfg Config) (*Pipeline, error) {
	if cfg.Workers <= 0 {
		return nil, errors.New("workers must be > 0")
	}
	if cfg.QueueSize <= 0 {
		return nil, errors.New("queue size must be > 0")
	}
	if cfg.CallstackCacheSize == 0 {
		return nil, errors.New("callstack cache size must be > 0")
	}
	return &Pipeline{
		cfg:      cfg,
		registry: interning.NewRegistry(catalog, cfg.CallstackCacheSize),
		tracker:  heapprofile.NewTracker(sink, cfg.Counters),
	}, nil
}

// Tracker returns the delta tracker of the Pipeline.
func (p *Pipeline) Tracker() *heapprofile.Tracker {
	return p.tracker
}

// Registry returns the interning tables of the Pipeline.
func (p *Pipeline) Registry() *interning.Registry {
	return p.registry
}

// tokenize feeds the trace to t and passes every packet to emit.
type tokenize func(t *tracereader.Tokenizer, emit func(traceblob.View) error) error

// Run processes the complete trace held by trace.
func (p *Pipeline) Run(ctx context.Context, trace traceblob.View) (Summary, error) {
	return p.run(ctx, func(t *tracereader.Tokenizer, emit func(traceblob.View) error) error {
		return t.Feed(trace, emit)
	})
}

// RunReader processes the trace read from r in chunks of bufSize bytes. Every
// chunk is held in its own Blob that is freed once the last packet referencing
// it was handled.
func (p *Pipeline) RunReader(ctx context.Context, r io.Reader, bufSize int) (Summary, error) {
	if bufSize <= 0 {
		return Summary{}, fmt.Errorf("invalid read buffer size %d", bufSize)
	}
	return p.run(ctx, func(t *tracereader.Tokenizer, emit func(traceblob.View) error) error {
		for {
			buf := make([]byte, bufSize)
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				if ferr := feedChunk(t, buf[:n], emit); ferr != nil {
					return ferr
				}
			}
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return nil
			case err != nil:
				return fmt.Errorf("reading trace: %w", err)
			}
		}
	})
}

func feedChunk(t *tracereader.Tokenizer, data []byte, emit func(traceblob.View) error) error {
	blob := traceblob.NewBlob(data)
	chunk, err := traceblob.NewView(blob, 0, traceblob.WholeBlob)
	if err != nil {
		blob.Discard()
		return err
	}
	defer chunk.Release()
	return t.Feed(chunk, emit)
}

func (p *Pipeline) run(ctx context.Context, feed tokenize) (Summary, error) {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan *tracereader.Packet, p.cfg.Workers)
	summaries := make([]Summary, p.cfg.Workers)
	for i := range queues {
		queues[i] = make(chan *tracereader.Packet, p.cfg.QueueSize)
		g.Go(func() error {
			return p.work(gctx, queues[i], &summaries[i])
		})
	}

	var total Summary
	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()

		var t tracereader.Tokenizer
		err := feed(&t, func(v traceblob.View) error {
			return p.dispatch(gctx, v, queues, &total)
		})
		total.SkippedFields = t.Skipped()
		if err != nil {
			return err
		}
		if err := t.Finish(); err != nil {
			total.Malformed++
			log.Warnf("Trace ends with a truncated packet: %v", err)
		}
		return nil
	})

	err := g.Wait()
	// Packets still queued after a failure hold references into the trace.
	for _, q := range queues {
		for pkt := range q {
			pkt.Release()
		}
	}
	for i := range summaries {
		total.merge(&summaries[i])
	}

	if err == nil {
		err = p.finish(ctx, &total)
	}
	p.collectMetrics(&total)
	return total, err
}

// dispatch decodes the packet in v and queues it on the worker owning its
// sequence. It takes over the reference held by v.
func (p *Pipeline) dispatch(ctx context.Context, v traceblob.View, queues []chan *tracereader.Packet,
	s *Summary) error {
	defer v.Release()
	s.Packets++

	pkt, err := tracereader.DecodePacket(v)
	if err != nil {
		s.Malformed++
		log.Warnf("Skipping packet %d: %v", s.Packets, err)
		return nil
	}
	if pkt.Profile == nil && !pkt.IncrementalStateCleared {
		return nil
	}

	q := queues[shard(pkt.SequenceID, len(queues))]
	select {
	case q <- pkt:
		return nil
	case <-ctx.Done():
		pkt.Release()
		return ctx.Err()
	}
}

func shard(seq libpf.SequenceID, n int) int {
	return int(seq.Hash32() % uint32(n))
}

func (p *Pipeline) work(ctx context.Context, queue <-chan *tracereader.Packet, s *Summary) error {
	for pkt := range queue {
		err := p.handlePacket(ctx, pkt, s)
		pkt.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

// handlePacket interns the records of pkt, stores its samples and finalizes
// the dump if pkt is its last packet.
func (p *Pipeline) handlePacket(ctx context.Context, pkt *tracereader.Packet, s *Summary) error {
	seq := pkt.SequenceID
	if pkt.IncrementalStateCleared {
		// Pending samples refer to callstack ids of the cleared state.
		if n := p.tracker.DiscardPending(seq); n > 0 {
			log.Warnf("Sequence %d: interning state cleared, discarding %d pending samples",
				seq, n)
			s.Discarded += n
		}
		p.registry.Reset(seq)
	}
	pp := pkt.Profile
	if pp == nil {
		return nil
	}
	s.ProfilePackets++

	if !p.tracker.ObservePacket(seq, pp.Index) {
		s.DuplicatePackets++
		return nil
	}

	table, err := p.registry.Table(seq)
	if err != nil {
		return fmt.Errorf("sequence %d: %w", seq, err)
	}
	if err := table.InternPacket(pp); err != nil {
		log.Debugf("Sequence %d: profile packet %d: %v", seq, pp.Index, err)
	}

	for i := range pp.ProcessDumps {
		dump := &pp.ProcessDumps[i]
		dumpTime := dump.Timestamp
		if dumpTime == 0 {
			dumpTime = pkt.Timestamp
		}
		for _, hs := range dump.Samples {
			ts := hs.Timestamp
			if ts == 0 {
				ts = dumpTime
			}
			p.tracker.StoreSample(seq, heapprofile.Sample{
				PID:         libpf.PID(dump.PID),
				Timestamp:   ts,
				CallstackID: hs.CallstackID,
				HeapName:    dump.HeapName,
				AllocCount:  hs.AllocCount,
				AllocBytes:  hs.SelfAllocated,
				FreeCount:   hs.FreeCount,
				FreeBytes:   hs.SelfFreed,
			})
		}
	}

	if pp.Continued {
		return nil
	}
	rep, err := p.tracker.FinalizeDump(ctx, seq, pp.Index, table)
	if err != nil {
		return err
	}
	s.add(&rep)
	return nil
}

// teardown drops the delta and interning state of seq.
func (p *Pipeline) teardown(seq libpf.SequenceID) {
	p.tracker.Teardown(seq)
	p.registry.Reset(seq)
}

// finish handles the dumps that were still open at the end of the trace.
func (p *Pipeline) finish(ctx context.Context, s *Summary) error {
	for _, seq := range p.tracker.Sequences() {
		n := p.tracker.Pending(seq)
		if n == 0 {
			continue
		}
		s.IncompleteDumps++
		if !p.cfg.FlushIncomplete {
			log.Warnf("Sequence %d: trace ended with %d samples of an unfinished dump", seq, n)
			p.teardown(seq)
			continue
		}
		table, err := p.registry.Table(seq)
		if err != nil {
			return fmt.Errorf("sequence %d: %w", seq, err)
		}
		rep, err := p.tracker.CommitSamples(ctx, seq, table)
		if err != nil {
			return err
		}
		s.Rows += rep.Rows
		s.Dropped += rep.Dropped
		s.Clamped += rep.Clamped
	}
	return nil
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storage // import "go.opentelemetry.io/profile-ingest/storage"

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/profile-ingest/internal/compression"
	"go.opentelemetry.io/profile-ingest/interning"
	"go.opentelemetry.io/profile-ingest/libpf"
)

// ExportRow is the JSON lines representation of an AllocationRow.
type ExportRow struct {
	AllocationRow

	// StackID is a content hash of the frames of the callsite. Unlike the
	// callsite id it is stable across traces.
	StackID string `json:"stack_id,omitempty"`
	// Frames lists the callstack, outermost frame first.
	Frames []string `json:"frames,omitempty"`
}

type stackInfo struct {
	id     string
	frames []string
}

// ExportWriter is a Writer that encodes rows as JSON lines into a possibly
// compressed stream.
type ExportWriter struct {
	mu sync.Mutex

	buf        *bufio.Writer
	compressor io.WriteCloser
	file       io.Closer

	// scratch holds the encoded rows of a batch until all of them encoded.
	scratch bytes.Buffer
	enc     *json.Encoder

	catalog *interning.Catalog
	stacks  map[libpf.CallsiteID]stackInfo

	rows   int
	closed bool
}

// NewExportWriter returns an ExportWriter writing to w. If catalog is not nil,
// rows are annotated with their callstacks.
func NewExportWriter(w io.Writer, c compression.Compression,
	catalog *interning.Catalog) (*ExportWriter, error) {
	compressor, err := compression.NewWriter(w, c)
	if err != nil {
		return nil, err
	}
	ew := &ExportWriter{
		buf:        bufio.NewWriter(compressor),
		compressor: compressor,
		catalog:    catalog,
		stacks:     make(map[libpf.CallsiteID]stackInfo),
	}
	ew.enc = json.NewEncoder(&ew.scratch)
	return ew, nil
}

// CreateExport creates the file at path and returns an ExportWriter for it.
// The file is closed by Close.
func CreateExport(path string, c compression.Compression,
	catalog *interning.Catalog) (*ExportWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewExportWriter(f, c, catalog)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

func (w *ExportWriter) stack(id libpf.CallsiteID) stackInfo {
	if info, ok := w.stacks[id]; ok {
		return info
	}
	var info stackInfo
	if frames, ok := w.catalog.Frames(id); ok {
		info.id = frames.Hash().ToUUIDString()
		info.frames = make([]string, len(frames))
		for i, f := range frames {
			info.frames[i] = formatFrame(f.Value())
		}
	}
	w.stacks[id] = info
	return info
}

func formatFrame(f libpf.Frame) string {
	name := f.FunctionName.String()
	if name == "" {
		name = "??"
	}
	if !f.Mapping.Valid() {
		return fmt.Sprintf("%s+0x%x", name, f.RelPC)
	}
	return fmt.Sprintf("%s %s+0x%x", name, f.Mapping.Value().Path, f.RelPC)
}

// WriteAllocations implements Writer.
func (w *ExportWriter) WriteAllocations(_ context.Context, rows []AllocationRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	w.scratch.Reset()
	for _, row := range rows {
		out := ExportRow{AllocationRow: row}
		if w.catalog != nil {
			info := w.stack(row.Callsite)
			out.StackID, out.Frames = info.id, info.frames
		}
		if err := w.enc.Encode(&out); err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}
	if _, err := w.buf.Write(w.scratch.Bytes()); err != nil {
		return fmt.Errorf("failed to write %d rows: %w", len(rows), err)
	}
	w.rows += len(rows)
	return nil
}

// Rows returns the number of rows written.
func (w *ExportWriter) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Close flushes the stream and closes the file created by CreateExport.
func (w *ExportWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.buf.Flush()
	err = errors.Join(err, w.compressor.Close())
	if w.file != nil {
		err = errors.Join(err, w.file.Close())
	}
	return err
}

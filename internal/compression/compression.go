// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package compression wraps readers and writers in one of the supported
// compression formats.
package compression // import "go.opentelemetry.io/profile-ingest/internal/compression"

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is a compression format.
type Compression uint8

const (
	None Compression = iota
	Gzip
	Zstd
	S2
	LZ4
	Brotli
)

var names = map[Compression]string{
	None:   "none",
	Gzip:   "gzip",
	Zstd:   "zstd",
	S2:     "s2",
	LZ4:    "lz4",
	Brotli: "brotli",
}

var extensions = map[Compression]string{
	None:   "",
	Gzip:   ".gz",
	Zstd:   ".zst",
	S2:     ".s2",
	LZ4:    ".lz4",
	Brotli: ".br",
}

func (c Compression) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// Extension returns the file name extension of the format.
func (c Compression) Extension() string {
	return extensions[c]
}

// Parse returns the format with the given name.
func Parse(name string) (Compression, error) {
	for c, n := range names {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown compression %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// FromPath derives the format from the extension of a file name.
func FromPath(path string) Compression {
	for c, ext := range extensions {
		if ext != "" && strings.HasSuffix(path, ext) {
			return c
		}
	}
	return None
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a writer that compresses into w. Closing it flushes the
// compressed stream but does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case Zstd:
		return zstd.NewWriter(w)
	case S2:
		return s2.NewWriter(w), nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case Brotli:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	default:
		return nil, fmt.Errorf("unsupported compression %v", c)
	}
}

// NewReader returns a reader that decompresses r. Closing it releases the
// decoder but does not close r.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression %v", c)
	}
}

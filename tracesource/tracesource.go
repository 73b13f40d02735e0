// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracesource opens traces stored in local files or S3 objects.
//
// Uncompressed local traces are mapped into memory and handed out as a single
// Blob. All other traces are streamed and decompressed on the fly.
package tracesource // import "go.opentelemetry.io/profile-ingest/tracesource"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/profile-ingest/internal/compression"
	"go.opentelemetry.io/profile-ingest/traceblob"
)

// ErrNotFound is returned if the trace does not exist.
var ErrNotFound = errors.New("trace not found")

const s3Scheme = "s3"

// ObjectGetter is the part of the S3 API used to download traces.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures the S3 client.
type S3Options struct {
	// Region overrides the region of the default AWS configuration.
	Region string
	// Endpoint is the base URL of an S3 compatible service.
	Endpoint string
	// UsePathStyle addresses buckets as part of the path instead of the host.
	UsePathStyle bool
}

// NewS3Client returns an S3 client using the default AWS configuration of the
// environment.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Region != "" {
			o.Region = opts.Region
		}
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

// Source is an opened trace. Exactly one of Blob and Reader is set.
type Source struct {
	name        string
	compression compression.Compression

	blob    *traceblob.Blob
	reader  io.Reader
	closers []io.Closer
}

// Name returns the location the trace was opened from.
func (s *Source) Name() string {
	return s.name
}

// Compression returns the compression of the stored trace.
func (s *Source) Compression() compression.Compression {
	return s.compression
}

// Blob returns the Blob holding a memory mapped trace. The caller takes over
// the Blob: it is released with the last View on it.
func (s *Source) Blob() (*traceblob.Blob, bool) {
	blob := s.blob
	s.blob = nil
	return blob, blob != nil
}

// Reader returns the decompressed trace stream.
func (s *Source) Reader() (io.Reader, bool) {
	return s.reader, s.reader != nil
}

// Close releases the resources of the Source. A Blob that was never handed out
// is discarded.
func (s *Source) Close() error {
	if s.blob != nil {
		s.blob.Discard()
		s.blob = nil
	}
	var errs []error
	// Decompressors are closed before the underlying stream.
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Opener opens traces by location. Locations are local paths or s3://bucket/key
// URLs.
type Opener struct {
	s3 ObjectGetter
}

// NewOpener returns an Opener. The S3 client may be nil if no S3 locations are
// opened.
func NewOpener(client ObjectGetter) *Opener {
	return &Opener{s3: client}
}

// IsS3 reports whether location refers to an S3 object.
func IsS3(location string) bool {
	return strings.HasPrefix(location, s3Scheme+"://")
}

// ParseS3URL splits an s3://bucket/key URL.
func ParseS3URL(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 location %q: %w", location, err)
	}
	if u.Scheme != s3Scheme {
		return "", "", fmt.Errorf("invalid S3 location %q: scheme must be %s", location,
			s3Scheme)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 location %q: bucket and key required", location)
	}
	return u.Host, key, nil
}

// Open opens the trace at location. If override is empty, the compression is
// derived from the extension of location.
func (o *Opener) Open(ctx context.Context, location, override string) (*Source, error) {
	c := compression.FromPath(location)
	if override != "" {
		var err error
		if c, err = compression.Parse(override); err != nil {
			return nil, err
		}
	}

	if IsS3(location) {
		return o.openS3(ctx, location, c)
	}
	return openFile(location, c)
}

func openFile(path string, c compression.Compression) (*Source, error) {
	src := &Source{name: path, compression: c}
	if c == compression.None {
		blob, err := traceblob.MapFile(path)
		if err != nil {
			return nil, wrapNotExist(path, err)
		}
		log.Debugf("Mapped %s (%d bytes)", path, blob.Size())
		src.blob = blob
		return src, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, wrapNotExist(path, err)
	}
	if err := src.decompress(f, f, c); err != nil {
		return nil, err
	}
	return src, nil
}

func wrapNotExist(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return err
}

func (o *Opener) openS3(ctx context.Context, location string,
	c compression.Compression) (*Source, error) {
	if o.s3 == nil {
		return nil, fmt.Errorf("no S3 client to open %s", location)
	}
	bucket, key, err := ParseS3URL(location)
	if err != nil {
		return nil, err
	}

	out, err := o.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		if isErrNoSuchKey(err) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", location, err)
	}
	if out.ContentLength != nil {
		log.Debugf("Streaming %s (%d bytes)", location, *out.ContentLength)
	}

	src := &Source{name: location, compression: c}
	if err := src.decompress(out.Body, out.Body, c); err != nil {
		return nil, err
	}
	return src, nil
}

// decompress sets up the reader of s. closer is closed on failure.
func (s *Source) decompress(r io.Reader, closer io.Closer, c compression.Compression) error {
	s.closers = append(s.closers, closer)
	dec, err := compression.NewReader(r, c)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to decompress %s: %w", s.name, err)
	}
	s.closers = append(s.closers, dec)
	s.reader = dec
	return nil
}

// isErrNoSuchKey checks whether the given AWS error indicates that the given key does not exist.
func isErrNoSuchKey(err error) bool {
	// GetObject reports a missing key as NoSuchKey, HEAD style requests as NotFound.
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracesource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/profile-ingest/internal/compression"
	"go.opentelemetry.io/profile-ingest/traceblob"
)

var content = bytes.Repeat([]byte("trace bytes "), 512)

type fakeS3 struct {
	objects map[string][]byte
	closed  int
}

type trackedBody struct {
	io.Reader
	s3 *fakeS3
}

func (b *trackedBody) Close() error {
	b.s3.closed++
	return nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput,
	_ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	size := int64(len(data))
	return &s3.GetObjectOutput{
		Body:          &trackedBody{Reader: bytes.NewReader(data), s3: f},
		ContentLength: &size,
	}, nil
}

func compress(t *testing.T, c compression.Compression, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, c)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readAll(t *testing.T, src *Source) []byte {
	t.Helper()
	r, ok := src.Reader()
	require.True(t, ok)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestOpenMappedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pb")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	src, err := NewOpener(nil).Open(context.Background(), path, "")
	require.NoError(t, err)
	_, ok := src.Reader()
	assert.False(t, ok)

	blob, ok := src.Blob()
	require.True(t, ok)
	v, err := traceblob.NewView(blob, 0, traceblob.WholeBlob)
	require.NoError(t, err)
	assert.Equal(t, content, v.Data())
	require.NoError(t, src.Close())

	// The View keeps the mapping alive after the Source was closed.
	assert.False(t, blob.Released())
	v.Release()
	assert.True(t, blob.Released())
}

func TestCloseDiscardsUnusedBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pb")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	src, err := NewOpener(nil).Open(context.Background(), path, "")
	require.NoError(t, err)
	blob := src.blob
	require.NoError(t, src.Close())
	assert.True(t, blob.Released())
}

func TestOpenCompressedFile(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []compression.Compression{compression.Gzip, compression.Zstd,
		compression.S2, compression.LZ4, compression.Brotli} {
		t.Run(c.String(), func(t *testing.T) {
			path := filepath.Join(dir, "trace.pb"+c.Extension())
			require.NoError(t, os.WriteFile(path, compress(t, c, content), 0o600))

			src, err := NewOpener(nil).Open(context.Background(), path, "")
			require.NoError(t, err)
			defer src.Close()
			assert.Equal(t, c, src.Compression())
			_, ok := src.Blob()
			assert.False(t, ok)
			assert.Equal(t, content, readAll(t, src))
		})
	}
}

func TestOpenOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")
	require.NoError(t, os.WriteFile(path, compress(t, compression.Zstd, content), 0o600))

	src, err := NewOpener(nil).Open(context.Background(), path, "zstd")
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, content, readAll(t, src))

	_, err = NewOpener(nil).Open(context.Background(), path, "rar")
	require.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	for _, name := range []string{"missing.pb", "missing.pb.gz"} {
		_, err := NewOpener(nil).Open(context.Background(),
			filepath.Join(t.TempDir(), name), "")
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestOpenS3(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"traces/heap/a.pb":     content,
		"traces/heap/b.pb.zst": compress(t, compression.Zstd, content),
	}}
	opener := NewOpener(fake)

	for _, location := range []string{"s3://traces/heap/a.pb", "s3://traces/heap/b.pb.zst"} {
		t.Run(location, func(t *testing.T) {
			src, err := opener.Open(context.Background(), location, "")
			require.NoError(t, err)
			assert.Equal(t, location, src.Name())
			assert.Equal(t, content, readAll(t, src))
			require.NoError(t, src.Close())
		})
	}
	assert.Equal(t, 2, fake.closed)

	_, err := opener.Open(context.Background(), "s3://traces/heap/c.pb", "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = NewOpener(nil).Open(context.Background(), "s3://traces/heap/a.pb", "")
	require.Error(t, err)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://bucket/dir/trace.pb")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "dir/trace.pb", key)

	for _, bad := range []string{"s3://bucket", "s3:///key", "gs://bucket/key", "s3://%zz/k"} {
		_, _, err := ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsErrNoSuchKey(t *testing.T) {
	assert.True(t, isErrNoSuchKey(&s3types.NotFound{}))
	assert.True(t, isErrNoSuchKey(&s3types.NoSuchKey{}))
	assert.False(t, isErrNoSuchKey(errors.New("access denied")))
}

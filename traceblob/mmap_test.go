// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package traceblob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pb")
	require.NoError(t, os.WriteFile(path, []byte("heap profile"), 0o600))

	blob, err := MapFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12, blob.Size())

	v, err := NewView(blob, 5, WholeBlob)
	require.NoError(t, err)
	assert.Equal(t, []byte("profile"), v.Data())

	v.Release()
	assert.True(t, blob.Released())
}

func TestMapFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pb")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	blob, err := MapFile(path)
	require.NoError(t, err)
	assert.Zero(t, blob.Size())
	blob.Discard()
	assert.True(t, blob.Released())
}

func TestMapFileMissing(t *testing.T) {
	_, err := MapFile(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

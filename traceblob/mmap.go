// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package traceblob // import "go.opentelemetry.io/profile-ingest/traceblob"

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// MapFile maps the file at path read-only into memory and returns a Blob over
// the mapping. The mapping is removed when the Blob is released.
func MapFile(path string) (*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return NewBlob(nil), nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("file %s too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}
	return NewBlobWithRelease(data, func() {
		if err := unix.Munmap(data); err != nil {
			log.Errorf("Failed to unmap %s: %v", path, err)
		}
	}), nil
}

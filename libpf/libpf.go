// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package libpf holds the types shared by the ingestion packages: sequence and
// process identifiers, interned strings and the resolved frame model.
package libpf // import "go.opentelemetry.io/profile-ingest/libpf"

import "go.opentelemetry.io/profile-ingest/libpf/hash"

// SequenceID identifies one trace-writer sequence (trusted_packet_sequence_id).
type SequenceID uint32

// Hash32 returns a 32 bits hash of the input.
// It's main purpose is to be used as key for caching.
func (s SequenceID) Hash32() uint32 {
	return hash.Uint32(uint32(s))
}

// PID represent Unix Process ID (pid_t). It is the subject of heap samples.
type PID uint32

func (p PID) Hash32() uint32 {
	return uint32(p)
}

// Address represents an address, or offset within a process.
type Address uint64

// FrameID is the globally unique identity of a resolved frame.
type FrameID uint32

// CallsiteID is the globally unique identity of a resolved callstack. It names
// the leaf node of the callsite tree.
type CallsiteID uint32

// Void allows to use maps as sets without memory allocation for the values.
type Void struct{}

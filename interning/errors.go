// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package interning // import "go.opentelemetry.io/profile-ingest/interning"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/profile-ingest/libpf"
)

var (
	// ErrConflict is returned when an interning id is already bound to a
	// different entity.
	ErrConflict = errors.New("interning id bound to a different entity")

	// ErrUnresolved is returned when an interning id has no binding.
	ErrUnresolved = errors.New("unresolved interning reference")

	// ErrDepthLimit is returned for callstacks deeper than MaxCallstackDepth.
	ErrDepthLimit = errors.New("callstack exceeds depth limit")

	// ErrEmptyCallstack is returned for callstacks without frames.
	ErrEmptyCallstack = errors.New("callstack has no frames")
)

// Kind names the kind of an interned entity.
type Kind uint8

const (
	KindString Kind = iota
	KindMapping
	KindFrame
	KindCallstack
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindMapping:
		return "mapping"
	case KindFrame:
		return "frame"
	case KindCallstack:
		return "callstack"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ConflictError reports an attempt to rebind an interning id.
type ConflictError struct {
	Sequence libpf.SequenceID
	Kind     Kind
	ID       uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sequence %d: %s %d: %v", e.Sequence, e.Kind, e.ID, ErrConflict)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// UnresolvedReferenceError reports a lookup of an interning id that has no
// binding in the sequence.
type UnresolvedReferenceError struct {
	Sequence libpf.SequenceID
	Kind     Kind
	ID       uint64
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("sequence %d: %s %d: %v", e.Sequence, e.Kind, e.ID, ErrUnresolved)
}

func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolved
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package heapprofile // import "go.opentelemetry.io/profile-ingest/heapprofile"

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/profile-ingest/libpf"
)

// Sample is a raw heap sample waiting for the end of its dump. Its counters
// are cumulative and CallstackID is only meaningful within its sequence.
type Sample struct {
	PID         libpf.PID
	Timestamp   uint64
	CallstackID uint64
	HeapName    string

	AllocCount uint64
	AllocBytes uint64
	FreeCount  uint64
	FreeBytes  uint64
}

// Resolver maps sequence local callstack ids to callsites.
type Resolver interface {
	ResolveCallstack(id uint64) (libpf.CallsiteID, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(id uint64) (libpf.CallsiteID, error)

// ResolveCallstack implements Resolver.
func (f ResolverFunc) ResolveCallstack(id uint64) (libpf.CallsiteID, error) {
	return f(id)
}

// CounterSemantics defines what the cumulative counters of a sample count.
type CounterSemantics uint8

const (
	// SinceProcessStart counters grow over the lifetime of the process. Rows
	// hold the difference to the previous dump.
	SinceProcessStart CounterSemantics = iota
	// SinceDumpStart counters are reset at every dump and are written as they are.
	SinceDumpStart
)

func (c CounterSemantics) String() string {
	switch c {
	case SinceProcessStart:
		return "since-process-start"
	case SinceDumpStart:
		return "since-dump-start"
	default:
		return fmt.Sprintf("CounterSemantics(%d)", uint8(c))
	}
}

// ParseCounterSemantics parses the String representation of CounterSemantics.
func ParseCounterSemantics(s string) (CounterSemantics, error) {
	for _, c := range []CounterSemantics{SinceProcessStart, SinceDumpStart} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return SinceProcessStart, fmt.Errorf("unknown counter semantics %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c CounterSemantics) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CounterSemantics) UnmarshalText(text []byte) error {
	parsed, err := ParseCounterSemantics(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// State is the lifecycle state of a sequence.
type State uint8

const (
	// Idle sequences have no pending samples.
	Idle State = iota
	// Accumulating sequences have pending samples of an unfinished dump.
	Accumulating
	// Finalizing sequences are committing their pending samples.
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Finalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

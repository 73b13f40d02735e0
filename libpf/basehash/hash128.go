// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package basehash provides the 128 bit content hash used to fingerprint
// resolved frames and callsites independently of the trace they came from.
package basehash // import "go.opentelemetry.io/profile-ingest/libpf/basehash"

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// Hash128 represents a uint128 using two uint64s.
//
// hi represents the most significant 64 bits and lo represents the least
// significant 64 bits.
type Hash128 struct { //nolint:recvcheck
	hi uint64
	lo uint64
}

func New128(hi, lo uint64) Hash128 {
	return Hash128{hi, lo}
}

// FromUint128 converts the result of an xxh3 128 bit hash.
func FromUint128(u xxh3.Uint128) Hash128 {
	return Hash128{hi: u.Hi, lo: u.Lo}
}

// New128FromBytes returns a Hash128 given by the bytes in b.
func New128FromBytes(b []byte) (Hash128, error) {
	if len(b) != 16 {
		return Hash128{}, fmt.Errorf("invalid length for bytes: %d", len(b))
	}
	return Hash128{
		hi: binary.BigEndian.Uint64(b[0:8]),
		lo: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// New128FromString parses the hexadecimal or UUID representation of a hash.
func New128FromString(s string) (Hash128, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 32 {
		return Hash128{}, fmt.Errorf("invalid length for string '%s': %d", s, len(s))
	}
	hi, err := strconv.ParseUint(s[0:16], 16, 64)
	if err != nil {
		return Hash128{}, err
	}
	lo, err := strconv.ParseUint(s[16:32], 16, 64)
	if err != nil {
		return Hash128{}, err
	}
	return New128(hi, lo), nil
}

// Bytes returns the big endian byte representation of a Hash128.
func (h Hash128) Bytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], h.hi)
	binary.BigEndian.PutUint64(b[8:16], h.lo)
	return b
}

// ToUUIDString formats the hash as a UUID, which is how fingerprints appear
// in exported rows.
func (h Hash128) ToUUIDString() string {
	// The following can't fail: we are guaranteed to get a slice of the correct length.
	id, _ := uuid.FromBytes(h.Bytes())
	return id.String()
}

func (h Hash128) String() string {
	return fmt.Sprintf("%016x%016x", h.hi, h.lo)
}

func (h Hash128) Equal(other Hash128) bool {
	return h.hi == other.hi && h.lo == other.lo
}

func (h Hash128) IsZero() bool {
	return h.hi == 0 && h.lo == 0
}

// Hi returns the high 64 bits
func (h Hash128) Hi() uint64 {
	return h.hi
}

// Lo returns the low 64 bits
func (h Hash128) Lo() uint64 {
	return h.lo
}

// MarshalText implements the encoding.TextMarshaler interface, so a Hash128
// can be used as JSON value or map key.
func (h Hash128) MarshalText() ([]byte, error) {
	return []byte(h.ToUUIDString()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash128) UnmarshalText(text []byte) error {
	parsed, err := New128FromString(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Compile-time interface checks
var _ encoding.TextUnmarshaler = (*Hash128)(nil)
var _ encoding.TextMarshaler = (*Hash128)(nil)

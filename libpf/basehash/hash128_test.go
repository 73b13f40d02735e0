// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package basehash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func TestFromBytes(t *testing.T) {
	_, err := New128FromBytes(nil)
	assert.Error(t, err)

	_, err = New128FromBytes([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	assert.Error(t, err)

	b := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	hash, err := New128FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, New128(0x01020304050607, 0x08090A0B0C0D0E0F), hash)
	assert.Equal(t, b, hash.Bytes())
}

func TestEqual(t *testing.T) {
	hash := New128(0xDEC0DE, 0xC0FFEE)

	assert.True(t, hash.Equal(New128(0xDEC0DE, 0xC0FFEE)))
	assert.False(t, hash.Equal(New128(0xDEC0DE, 0)))
	assert.False(t, hash.Equal(New128(0, 0xC0FFEE)))
}

func TestUUIDRoundTrip(t *testing.T) {
	hash := FromUint128(xxh3.HashString128("libc.so.6!malloc"))
	require.False(t, hash.IsZero())

	text, err := hash.MarshalText()
	require.NoError(t, err)
	assert.Len(t, text, 36)

	var parsed Hash128
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, hash, parsed)

	parsed = Hash128{}
	require.NoError(t, parsed.UnmarshalText([]byte(hash.String())))
	assert.Equal(t, hash, parsed)
}

func TestFromString(t *testing.T) {
	for name, tc := range map[string]struct {
		in      string
		want    Hash128
		wantErr bool
	}{
		"hex":       {in: "0x00000000000000010000000000000002", want: New128(1, 2)},
		"uuid":      {in: "00000000-0000-0001-0000-000000000002", want: New128(1, 2)},
		"too short": {in: "0x01", wantErr: true},
		"not hex":   {in: "zz000000000000010000000000000002", wantErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := New128FromString(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

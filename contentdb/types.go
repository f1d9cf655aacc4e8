// Package contentdb implements the local content database backing a Portal
// History Network node: a content-addressed, radius-bounded key/value store
// built on an embedded SQL engine (modernc.org/sqlite) with custom scalar
// functions for 256-bit XOR distance.
package contentdb

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// ContentId is the 256-bit, content-type-dependent identifier that is the
// sole key into the store. It is kept as a fixed-size byte array at the API
// boundary — serialized big-endian, matching on-disk key order to numeric
// order — and converted to *uint256.Int only where arithmetic is needed.
type ContentId [32]byte

// Uint256 returns the big-endian numeric value of the id.
func (c ContentId) Uint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(c[:])
}

// Bytes returns the 32-byte big-endian encoding of the id.
func (c ContentId) Bytes() []byte { return c[:] }

// LocalId is the 256-bit identifier of the owning node. It participates only
// as the XOR-distance origin and never changes after construction.
type LocalId [32]byte

// Uint256 returns the big-endian numeric value of the id.
func (l LocalId) Uint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(l[:])
}

// Bytes returns the 32-byte big-endian encoding of the id.
func (l LocalId) Bytes() []byte { return l[:] }

// MarshalText hex-encodes the id, so it round-trips through TOML (and any
// other encoding.TextMarshaler-aware format) as a plain hex string rather
// than a raw byte array.
func (l LocalId) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(l[:])), nil
}

// UnmarshalText decodes a hex string (with or without a "0x" prefix) into
// the id, letting Config.LocalId be set directly from a TOML config file.
func (l *LocalId) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("contentdb: invalid localId %q: %w", text, err)
	}
	if len(b) != 32 {
		return fmt.Errorf("contentdb: localId must be 32 bytes, got %d", len(b))
	}
	copy(l[:], b)
	return nil
}

// toBytes32 encodes a radius (or any 256-bit unsigned quantity) as its
// 32-byte big-endian representation, for use as a SQL bind parameter to
// isInRadius/xorDistance.
func toBytes32(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

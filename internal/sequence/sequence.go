// Package sequence implements the persisted form of a derivation
// sequence: the little-endian width-native integer blob a fuzzing
// corpus stores on disk, the "peacock-raw-" filename convention that
// marks such a blob so it can be loaded verbatim instead of being run
// through Unparse, and the content-hash naming used for files this
// package writes out itself.
//
// This is the one piece of the fuzzer-harness input handling that
// belongs in the core: everything else about that harness (process
// management, coverage maps, scheduling) lives with the harness.
package sequence

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// RawPrefix is the filename prefix that marks a file as a raw derivation
// sequence blob rather than a concrete byte string to be unparsed.
const RawPrefix = "peacock-raw-"

// Sequence is a derivation sequence: the ordered list of alternative tags
// chosen during a leftmost pre-order expansion from the start symbol. It
// is a plain value type; the (buf, len, capacity) triple from the C ABI
// only exists at the boundary into emitted code (see internal/codegen).
type Sequence []uint64

// EncodeRaw renders seq as a little-endian blob of 64-bit unsigned
// integers -- the on-disk form of a raw persisted sequence.
func EncodeRaw(seq Sequence) []byte {
	out := make([]byte, 8*len(seq))
	for i, v := range seq {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}

// DecodeRaw parses a little-endian blob of 64-bit unsigned integers back
// into a Sequence. It is an error for the blob's length not to be a
// multiple of 8 bytes.
func DecodeRaw(data []byte) (Sequence, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("sequence: raw blob length %d is not a multiple of 8", len(data))
	}
	out := make(Sequence, len(data)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return out, nil
}

// RawFileName returns the conventional file name for persisting seq's
// raw blob: RawPrefix followed by the first 16 hex digits of the
// content's SHA-256 hash.
func RawFileName(seq Sequence) string {
	blob := EncodeRaw(seq)
	sum := sha256.Sum256(blob)
	return RawPrefix + hex.EncodeToString(sum[:])[:16]
}

// IsRawFileName reports whether name follows the raw-blob naming
// convention, and therefore should be loaded via DecodeRaw rather than
// fed through an unparser.
func IsRawFileName(name string) bool {
	return strings.HasPrefix(name, RawPrefix)
}

// LoadFile interprets the bytes of a persisted input file according to
// its name: if name carries the raw-blob prefix, data is decoded
// directly as a Sequence; otherwise data is treated as a concrete output
// and unparse is called to reconstruct a derivation from it.
func LoadFile(name string, data []byte, unparse func([]byte) (Sequence, error)) (Sequence, error) {
	if IsRawFileName(name) {
		return DecodeRaw(data)
	}
	return unparse(data)
}

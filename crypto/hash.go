// Package crypto supplies the hashing primitives used to verify data part
// streams. Checksums are computed with xxhash, a fast non-cryptographic
// hash adequate for detecting accidental corruption (bit rot, truncated
// writes, torn copies) rather than adversarial tampering.
package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/cespare/xxhash/v2"
)

// HashSize is the width in bytes of a Hash.
const HashSize = 8

type (
	// Hash is a 64-bit xxhash digest.
	Hash [HashSize]byte

	// HashSlice implements sort.Interface over a slice of Hash.
	HashSlice []Hash
)

// ErrHashWrongLen is returned when a JSON-encoded hash has the wrong
// length to be decoded.
var ErrHashWrongLen = errors.New("encoded value has the wrong length to be a hash")

// NewHasher returns a fresh streaming xxhash digest.
func NewHasher() *xxhash.Digest {
	return xxhash.New()
}

// HashBytes hashes a byte slice directly.
func HashBytes(data []byte) Hash {
	return uint64ToHash(xxhash.Sum64(data))
}

func uint64ToHash(v uint64) (h Hash) {
	for i := 0; i < HashSize; i++ {
		h[i] = byte(v >> (8 * uint(i)))
	}
	return h
}

// Uint64 returns the hash's underlying 64-bit value.
func (h Hash) Uint64() uint64 {
	var v uint64
	for i := 0; i < HashSize; i++ {
		v |= uint64(h[i]) << (8 * uint(i))
	}
	return v
}

// String prints the hash as a hex string.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON marshals a hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex-string-encoded hash.
func (h *Hash) UnmarshalJSON(b []byte) error {
	if len(b) != HashSize*2+2 {
		return ErrHashWrongLen
	}
	hBytes, err := hex.DecodeString(string(b[1 : len(b)-1]))
	if err != nil {
		return errors.New("could not unmarshal crypto.Hash: " + err.Error())
	}
	copy(h[:], hBytes)
	return nil
}

// Len, Less and Swap implement sort.Interface for HashSlice.
func (hs HashSlice) Len() int           { return len(hs) }
func (hs HashSlice) Less(i, j int) bool { return bytes.Compare(hs[i][:], hs[j][:]) < 0 }
func (hs HashSlice) Swap(i, j int)      { hs[i], hs[j] = hs[j], hs[i] }

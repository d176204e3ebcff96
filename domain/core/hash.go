package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Hasher accumulates labelled float sequences into a single fingerprint.
// Floats are hashed by their IEEE-754 bit pattern so two fingerprints match
// only for bit-for-bit identical values.
type Hasher struct {
	h   hash.Hash
	buf [8]byte
}

// NewHasher returns an empty fingerprint accumulator
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// WriteString adds a label
func (f *Hasher) WriteString(s string) {
	binary.LittleEndian.PutUint64(f.buf[:], uint64(len(s)))
	f.h.Write(f.buf[:])
	f.h.Write([]byte(s))
}

// WriteFloats adds a float sequence
func (f *Hasher) WriteFloats(values []float64) {
	binary.LittleEndian.PutUint64(f.buf[:], uint64(len(values)))
	f.h.Write(f.buf[:])
	for _, v := range values {
		binary.LittleEndian.PutUint64(f.buf[:], math.Float64bits(v))
		f.h.Write(f.buf[:])
	}
}

// Sum returns the accumulated hash
func (f *Hasher) Sum() Hash {
	return Hash(hex.EncodeToString(f.h.Sum(nil)))
}

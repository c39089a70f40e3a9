package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
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

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// LockToken derives a stable int64 from a history key, used as the
// advisory lock identifier by SQL-backed stores. Collisions only cost
// extra serialization, never correctness.
func LockToken(key string) int64 {
	sum := sha256.Sum256([]byte(key))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// WindowHash fingerprints a window of observations so reports can state
// exactly which data they were computed from. NaNs hash to a fixed bit
// pattern so equal windows always produce equal fingerprints.
func WindowHash(values []float64) Hash {
	var data strings.Builder
	buf := make([]byte, 8)
	for _, v := range values {
		bits := math.Float64bits(v)
		if math.IsNaN(v) {
			bits = math.Float64bits(math.NaN())
		}
		binary.BigEndian.PutUint64(buf, bits)
		data.Write(buf)
	}
	data.WriteString(strconv.Itoa(len(values)))
	return NewHash([]byte(data.String()))
}

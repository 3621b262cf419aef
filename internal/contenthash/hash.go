// Package contenthash computes a fast, non-cryptographic content digest
// used to gate cache entries: a cached analysis result is only valid while
// the underlying file content hashes to the same value it was stored under.
package contenthash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// hashSalt is appended to the input of the second pass so Hi and Lo are not trivially
// related for inputs that happen to be short or repetitive.
const hashSalt uint64 = 0x9e3779b97f4a7c15

// Hash is a 128-bit content digest.
type Hash struct {
	Hi uint64
	Lo uint64
}

// Zero is the all-zero Hash value. Of never produces it (not even for empty
// input) unless the input happens to collide, so it doubles as a harmless
// "no hash recorded yet" sentinel.
var Zero = Hash{}

// Of computes the content hash of data using two xxhash passes: one over
// the raw bytes, and one over the bytes with a fixed salt appended, so a
// single 64-bit collision in one lane does not collide in the other.
func Of(data []byte) Hash {
	hi := xxhash.Sum64(data)

	lo := xxhash.New()
	_, _ = lo.Write(data)

	var saltBuf [8]byte
	for i := range saltBuf {
		saltBuf[i] = byte(hashSalt >> (8 * i))
	}

	_, _ = lo.Write(saltBuf[:])

	return Hash{Hi: hi, Lo: lo.Sum64()}
}

// String renders the hash as a fixed-width hex string, hi then lo.
func (h Hash) String() string {
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

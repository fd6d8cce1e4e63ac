package ir

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashBytes computes the BLAKE3 hash of data and returns it as a hex string.
func HashBytes(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Digest returns the BLAKE3 hash of the index's canonical bytes. Equal
// indexes have equal digests, which makes re-runs easy to compare.
func (x *VerseIndex) Digest() (string, error) {
	data, err := x.CanonicalBytes()
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

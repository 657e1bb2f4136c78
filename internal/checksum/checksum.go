// Package checksum provides content digests for published stacks.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex characters of the digest, used as a slug
// fallback when a stack name yields no usable slug.
func Short(data []byte) string {
	return Sum(data)[:8]
}

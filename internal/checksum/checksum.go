// Package checksum provides the digests used across the vault.
package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. It identifies file
// revisions for optimistic locking.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// BodyHash returns the lowercase hex MD5 digest of a resource payload.
// Media tags reference resources by this value.
func BodyHash(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}

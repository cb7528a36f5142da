package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentKey returns the content-addressed key for data: the lowercase
// hex SHA-256 digest. Identical bytes always produce the same key.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidContentKey reports whether key has the shape of a content key.
func ValidContentKey(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentDigest returns a stable hex digest of file content, used as the
// cache key for incremental re-analysis.
func ContentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

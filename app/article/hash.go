package article

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash computes the content identity of an article: the SHA-256 of the
// normalized title concatenated with the normalized content. It is the
// last-resort uniqueness guard, independent of semantic similarity.
func Hash(title, content string) string {
	sum := sha256.Sum256([]byte(title + content))
	return hex.EncodeToString(sum[:])
}

package similarity

import (
	"strconv"
	"strings"
)

const chromaIDDelimiter = "_"

// ExtractBaseID strips the chunk suffix from a content identifier.
// The service chunks long articles and names the pieces "<base_id>_0",
// "<base_id>_1", ...; the embedding reference stores only the base id.
//
//	ExtractBaseID("abc123_2") == "abc123"
//	ExtractBaseID("abc123") == "abc123"
func ExtractBaseID(chromaID string) string {
	chromaID = strings.TrimSpace(chromaID)
	if chromaID == "" {
		return ""
	}

	parts := strings.Split(chromaID, chromaIDDelimiter)
	if parts[0] == "" {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	if _, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
		return strings.Join(parts[:len(parts)-1], chromaIDDelimiter)
	}

	return parts[0]
}

// ChunkNumber returns the chunk index carried by a content identifier, or -1
// when the identifier has no numeric suffix.
func ChunkNumber(chromaID string) int {
	chromaID = strings.TrimSpace(chromaID)
	parts := strings.Split(chromaID, chromaIDDelimiter)
	if len(parts) < 2 {
		return -1
	}

	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || n < 0 {
		return -1
	}
	return n
}

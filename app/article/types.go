package article

import (
	"time"
)

// DefaultImage is used when no representative image could be resolved.
const DefaultImage = "/images/default.png"

// Record is a normalized, Article-shaped extraction result. Hash and URL are
// attached by the processor before persistence.
type Record struct {
	Title       string
	Content     string
	Summary     string
	Image       string
	URL         string
	Hash        string
	PublishedAt time.Time
}

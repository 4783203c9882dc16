package discover

import (
	"context"

	"github.com/mmcdole/gofeed"
)

// HTMLResult is the outcome of anchor discovery over a rendered page.
type HTMLResult struct {
	URLs    []string
	RawHTML string
}

// FeedItem is a retained feed entry. The parsed item is kept so that
// full-content sources can be resolved without fetching the article page.
type FeedItem struct {
	Link string
	Item *gofeed.Item
}

// Renderer fetches a page through the browser rendering collaborator.
type Renderer interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

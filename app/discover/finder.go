// Package discover harvests candidate article URLs from a source, either by
// matching anchor text on an HTML page or by filtering RSS items.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const fetchTimeout = 15 * time.Second

type Finder struct {
	httpClient *http.Client
	renderer   Renderer
	feedParser *gofeed.Parser
	userAgent  string
}

func NewFinder(renderer Renderer, userAgent string) *Finder {
	return &Finder{
		httpClient: &http.Client{Timeout: fetchTimeout},
		renderer:   renderer,
		feedParser: gofeed.NewParser(),
		userAgent:  userAgent,
	}
}

// FromHTML fetches a page and keeps the anchors whose visible text matches
// the regex and whose resolved URL stays on the source host. Duplicate URLs
// are collapsed, first-seen order is preserved. Any fetch or parse failure
// degrades to an empty result: discovery is never fatal to a run.
func (f *Finder) FromHTML(ctx context.Context, sourceURL string, re *regexp.Regexp, useBrowser bool) HTMLResult {
	var html []byte
	var err error
	if useBrowser {
		html, err = f.renderer.Fetch(ctx, sourceURL)
	} else {
		html, err = f.fetch(ctx, sourceURL)
	}
	if err != nil {
		slog.Error("Page fetch failed", "url", sourceURL, "use_browser", useBrowser, "error", err)
		return HTMLResult{}
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		slog.Error("Invalid source URL", "url", sourceURL, "error", err)
		return HTMLResult{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		slog.Error("Page parse failed", "url", sourceURL, "error", err)
		return HTMLResult{RawHTML: string(html)}
	}

	seen := make(map[string]bool)
	var urls []string
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" || !re.MatchString(text) {
			return
		}

		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if resolved.Host != base.Host {
			return
		}

		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		urls = append(urls, abs)
	})

	slog.Info("Articles found", "url", sourceURL, "links_found", len(urls), "use_browser", useBrowser)

	return HTMLResult{URLs: urls, RawHTML: string(html)}
}

// FromRSS fetches and parses a feed, retaining the items whose title or
// description matches the regex. Failures degrade to an empty result.
func (f *Finder) FromRSS(ctx context.Context, feedURL string, re *regexp.Regexp) []FeedItem {
	data, err := f.fetch(ctx, feedURL)
	if err != nil {
		slog.Error("Feed fetch failed", "url", feedURL, "error", err)
		return nil
	}

	feed, err := f.feedParser.Parse(bytes.NewReader(data))
	if err != nil {
		slog.Error("Feed parse failed", "url", feedURL, "error", err)
		return nil
	}

	var matched []FeedItem
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		if re.MatchString(item.Title) || re.MatchString(item.Description) {
			matched = append(matched, FeedItem{Link: item.Link, Item: item})
		}
	}

	slog.Info("Feed items matched", "url", feedURL, "total", len(feed.Items), "matched", len(matched))

	return matched
}

func (f *Finder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// Package extract turns a fetched page or a retained feed item into a
// normalized article record.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/discover"
)

const fetchTimeout = 15 * time.Second

// ErrEmptyContent signals that a page yielded no extractable main content.
var ErrEmptyContent = errors.New("no content extracted")

var (
	newlineRuns    = regexp.MustCompile(`[\r\n]+`)
	whitespaceRuns = regexp.MustCompile(`\s{2,}`)
)

type Extractor struct {
	httpClient *http.Client
	renderer   discover.Renderer
	userAgent  string
}

func NewExtractor(renderer discover.Renderer, userAgent string) *Extractor {
	return &Extractor{
		httpClient: &http.Client{Timeout: fetchTimeout},
		renderer:   renderer,
		userAgent:  userAgent,
	}
}

// FromHTML fetches an article page and extracts its main content.
func (e *Extractor) FromHTML(ctx context.Context, pageURL string, useBrowser bool) (*article.Record, error) {
	var html []byte
	var err error
	if useBrowser {
		html, err = e.renderer.Fetch(ctx, pageURL)
	} else {
		html, err = e.fetch(ctx, pageURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article page: %w", err)
	}

	cleaned, publishedAt := e.prepareHTML(html)

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid article URL: %w", err)
	}

	result, err := readability.FromReader(strings.NewReader(cleaned), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}
	if result.Content == "" {
		return nil, ErrEmptyContent
	}

	image := result.Image
	if image == "" {
		image = article.DefaultImage
	}

	slog.Debug("Content extracted", "url", pageURL, "title", result.Title, "content_length", len(result.Content))

	return &article.Record{
		Title:       result.Title,
		Content:     result.Content,
		Summary:     result.Excerpt,
		Image:       image,
		URL:         pageURL,
		PublishedAt: publishedAt,
	}, nil
}

// prepareHTML strips script/style/noscript/iframe/form/link elements while
// preserving metadata, and pulls the publish timestamp out of the page before
// readability discards the head.
func (e *Extractor) prepareHTML(html []byte) (string, time.Time) {
	publishedAt := time.Now().UTC()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return string(html), publishedAt
	}

	if ts, ok := extractPublishedAt(doc); ok {
		publishedAt = ts
	}

	doc.Find("script, style, noscript, iframe, form, link").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return string(html), publishedAt
	}

	cleaned = newlineRuns.ReplaceAllString(cleaned, "\n")
	cleaned = whitespaceRuns.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned), publishedAt
}

// extractPublishedAt reads the publish timestamp from
// <meta property="article:published_time"> or a <time datetime> element.
func extractPublishedAt(doc *goquery.Document) (time.Time, bool) {
	if content, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		if ts, err := dateparse.ParseAny(content); err == nil {
			return ts, true
		}
	}

	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if ts, err := dateparse.ParseAny(datetime); err == nil {
			return ts, true
		}
	}

	return time.Time{}, false
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
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

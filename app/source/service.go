// Package source manages crawl sources: round-robin rotation of the active
// source, creation with RSS autodetection, and deletion.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/discover"
)

// ErrNoSources is returned when the source table is empty. It is not
// retryable and aborts a discovery run.
var ErrNoSources = errors.New("no sources configured")

// Feed markers that indicate items carry complete article bodies.
var fullContentMarkers = []string{"<content:encoded>", "<full-text>"}

const probeTimeout = 5 * time.Second

type Service struct {
	repo       database.SourceRepository
	renderer   discover.Renderer
	httpClient *http.Client
	userAgent  string
}

func NewService(repo database.SourceRepository, renderer discover.Renderer, userAgent string) *Service {
	return &Service{
		repo:       repo,
		renderer:   renderer,
		httpClient: &http.Client{Timeout: probeTimeout},
		userAgent:  userAgent,
	}
}

// Rotate advances the active flag to the next-higher-id source, wrapping to
// the first, and returns the previously active source — the one to crawl
// this run. At most one source is active at a time.
func (s *Service) Rotate() (*database.Source, error) {
	current, err := s.repo.GetActive()
	if err != nil {
		return nil, fmt.Errorf("failed to get active source: %w", err)
	}
	if current == nil {
		current, err = s.repo.GetFirst()
		if err != nil {
			return nil, fmt.Errorf("failed to get first source: %w", err)
		}
	}
	if current == nil {
		return nil, ErrNoSources
	}

	if err := s.repo.DeactivateAll(); err != nil {
		return nil, err
	}

	next, err := s.repo.GetNextAfter(current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next source: %w", err)
	}
	if next == nil {
		next, err = s.repo.GetFirst()
		if err != nil {
			return nil, fmt.Errorf("failed to get first source: %w", err)
		}
	}
	if next != nil {
		if err := s.repo.Activate(next.ID); err != nil {
			return nil, err
		}
		slog.Info("Active source rotated", "previous_id", current.ID, "next_id", next.ID, "url", current.URL)
	}

	return current, nil
}

// Add registers a new crawl target. The page is rendered once through the
// browser collaborator to autodetect an RSS feed, probe whether plain
// fetching works, and sniff whether the feed carries full article bodies.
// Detection failures are logged and leave the corresponding flags unset.
func (s *Service) Add(ctx context.Context, pageURL string) (*database.Source, error) {
	active, err := s.repo.GetActive()
	if err != nil {
		return nil, err
	}

	src := database.Source{
		URL:      pageURL,
		IsActive: active == nil,
	}

	if rendered, err := s.renderer.Fetch(ctx, pageURL); err != nil {
		slog.Error("RSS detection failed", "url", pageURL, "error", err)
	} else {
		src.NeedBrowser = s.needsBrowser(ctx, pageURL)
		src.RSSURL = detectFeedURL(rendered, pageURL)
		if src.RSSURL != "" {
			src.FullRSSContent = s.feedHasFullContent(ctx, src.RSSURL)
		}

		slog.Info("RSS detected", "url", pageURL, "rss_url", src.RSSURL,
			"full_rss_content", src.FullRSSContent, "need_browser", src.NeedBrowser)
	}

	id, err := s.repo.Insert(src)
	if err != nil {
		return nil, err
	}
	src.ID = id

	return &src, nil
}

// Delete removes a source. When the deleted source was active, the next one
// (wrapping to the first) inherits the active flag.
func (s *Service) Delete(id int64) error {
	src, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("source %d not found", id)
	}

	if err := s.repo.Delete(id); err != nil {
		return err
	}

	if src.IsActive {
		next, err := s.repo.GetNextAfter(id)
		if err != nil {
			return err
		}
		if next == nil {
			next, err = s.repo.GetFirst()
			if err != nil {
				return err
			}
		}
		if next != nil {
			if err := s.repo.Activate(next.ID); err != nil {
				return err
			}
			slog.Info("Active flag moved after source deletion", "deleted_id", id, "next_id", next.ID)
		}
	}

	return nil
}

// needsBrowser reports whether a plain fetch of the page fails or is blocked,
// meaning future fetches must go through the rendering collaborator.
func (s *Service) needsBrowser(ctx context.Context, pageURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return true
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusForbidden || resp.StatusCode >= 500
}

// feedHasFullContent sniffs the feed body for full-content markers.
func (s *Service) feedHasFullContent(ctx context.Context, feedURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Warn("RSS fetch failed", "rss_url", feedURL, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	text := string(body)
	for _, marker := range fullContentMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// detectFeedURL looks for an advertised feed in the page head, falling back
// to anchors that look like feed links.
func detectFeedURL(html []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	selectors := []string{
		`link[type="application/rss+xml"]`,
		`link[type="application/atom+xml"]`,
		`a[href$=".rss"]`,
		`a[href$="/rss"]`,
		`a[href$="/feed"]`,
	}
	for _, selector := range selectors {
		if href, ok := doc.Find(selector).First().Attr("href"); ok && href != "" {
			if resolved, err := base.Parse(href); err == nil {
				return resolved.String()
			}
		}
	}

	return ""
}

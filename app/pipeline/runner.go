package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/discover"
	"github.com/lysyi3m/news-comb/app/extract"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/mmcdole/gofeed"
)

// Extractor resolves raw inputs into article records.
type Extractor interface {
	FromHTML(ctx context.Context, pageURL string, useBrowser bool) (*article.Record, error)
	FromFeedItem(item *gofeed.Item) (*article.Record, error)
}

// Finder discovers candidate article links on a source.
type Finder interface {
	FromHTML(ctx context.Context, sourceURL string, re *regexp.Regexp, useBrowser bool) discover.HTMLResult
	FromRSS(ctx context.Context, feedURL string, re *regexp.Regexp) []discover.FeedItem
}

var _ Extractor = (*extract.Extractor)(nil)
var _ Finder = (*discover.Finder)(nil)

// Summary tallies one pipeline run for logging and command exit reporting.
type Summary struct {
	SourceURL  string
	Discovered int
	NewLinks   int
	Processed  int
	Saved      int
	Duplicates int
	Skipped    int
	Errors     int
}

// Runner drives the two pipeline stages against the rotated source and the
// link backlog.
type Runner struct {
	sources   *source.Service
	links     database.LinkRepository
	finder    Finder
	extractor Extractor
	processor *Processor
}

func NewRunner(sources *source.Service, links database.LinkRepository,
	finder Finder, extractor Extractor, processor *Processor) *Runner {
	return &Runner{
		sources:   sources,
		links:     links,
		finder:    finder,
		extractor: extractor,
		processor: processor,
	}
}

// DiscoverLinks rotates to the next source and harvests article links from
// it. Sources with a full-content feed are processed end to end immediately;
// everything else is queued as links for a later resolve run. The pattern
// filters candidate links by their visible text (HTML) or title/description
// (RSS).
func (r *Runner) DiscoverLinks(ctx context.Context, pattern string) (*Summary, error) {
	if pattern == "" {
		return nil, fmt.Errorf("link regex is not configured")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid link regex %q: %w", pattern, err)
	}

	src, err := r.sources.Rotate()
	if err != nil {
		return nil, err
	}

	slog.Info("Discovering links", "source", src.URL, "rss", src.RSSURL != "",
		"full_content", src.FullRSSContent)

	summary := &Summary{SourceURL: src.URL}

	if src.RSSURL != "" {
		items := r.finder.FromRSS(ctx, src.RSSURL, re)
		summary.Discovered = len(items)

		if src.FullRSSContent {
			r.processFeedItems(ctx, src, items, summary)
		} else {
			urls := make([]string, 0, len(items))
			for _, item := range items {
				urls = append(urls, item.Link)
			}
			summary.NewLinks = r.saveLinks(urls, src, database.TypeRSS, summary)
		}
	} else {
		result := r.finder.FromHTML(ctx, src.URL, re, src.NeedBrowser)
		summary.Discovered = len(result.URLs)
		summary.NewLinks = r.saveLinks(result.URLs, src, database.TypeHTML, summary)
	}

	slog.Info("Discovery completed", "source", src.URL, "discovered", summary.Discovered,
		"new_links", summary.NewLinks, "processed", summary.Processed,
		"saved", summary.Saved, "duplicates", summary.Duplicates, "errors", summary.Errors)

	return summary, nil
}

// ResolveArticles drains the backlog of unprocessed links that still have
// retry budget, resolving each into an article or a recorded failure. A
// failing link never stops the batch.
func (r *Runner) ResolveArticles(ctx context.Context) (*Summary, error) {
	pending, err := r.links.GetUnprocessedWithinRetryLimit()
	if err != nil {
		return nil, fmt.Errorf("failed to load unprocessed links: %w", err)
	}

	summary := &Summary{Discovered: len(pending)}

	if len(pending) == 0 {
		slog.Info("No unprocessed links to resolve")
		return summary, nil
	}

	slog.Info("Resolving articles", "count", len(pending))

	for _, link := range pending {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		rec, err := r.extractor.FromHTML(ctx, link.URL, link.UseBrowser)
		if err != nil {
			slog.Error("Failed to extract article", "url", link.URL, "error", err)
			r.recordError(link, err.Error())
			summary.Errors++
			continue
		}

		summary.Processed++
		r.tally(r.processor.Process(ctx, link, *rec, link.Type), summary)
	}

	slog.Info("Resolve completed", "pending", len(pending), "processed", summary.Processed,
		"saved", summary.Saved, "duplicates", summary.Duplicates,
		"skipped", summary.Skipped, "errors", summary.Errors)

	return summary, nil
}

// processFeedItems handles a full-content feed: each item already carries the
// article body, so links are created and processed in the same run without a
// second fetch.
func (r *Runner) processFeedItems(ctx context.Context, src *database.Source, items []discover.FeedItem, summary *Summary) {
	for _, item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		link, created, err := r.links.GetOrCreate(item.Link, src, database.TypeRSS)
		if err != nil {
			slog.Error("Failed to store link", "url", item.Link, "error", err)
			summary.Errors++
			continue
		}
		if created {
			summary.NewLinks++
		}
		if link.Parsed && link.LastError == "" {
			continue
		}

		rec, err := r.extractor.FromFeedItem(item.Item)
		if err != nil {
			slog.Error("Failed to extract feed item", "url", item.Link, "error", err)
			r.recordError(*link, err.Error())
			summary.Errors++
			continue
		}
		if rec == nil {
			slog.Warn("Feed item has no usable content", "url", item.Link)
			r.recordError(*link, "feed item has no usable content")
			summary.Errors++
			continue
		}

		summary.Processed++
		r.tally(r.processor.Process(ctx, *link, *rec, database.TypeRSS), summary)
	}
}

func (r *Runner) saveLinks(urls []string, src *database.Source, linkType string, summary *Summary) int {
	if len(urls) == 0 {
		return 0
	}
	saved, err := r.links.SaveNew(urls, src, linkType)
	if err != nil {
		slog.Error("Failed to save links", "source", src.URL, "error", err)
		summary.Errors++
		return 0
	}
	return saved
}

func (r *Runner) tally(outcome Outcome, summary *Summary) {
	switch outcome {
	case OutcomeSaved:
		summary.Saved++
	case OutcomeDuplicate:
		summary.Duplicates++
	case OutcomeSkipped:
		summary.Skipped++
	case OutcomeFailed:
		summary.Errors++
	}
}

func (r *Runner) recordError(link database.Link, message string) {
	if err := r.links.RecordError(link.ID, message, database.ErrorParsing); err != nil {
		slog.Error("Failed to record link error", "url", link.URL, "error", err)
	}
}
